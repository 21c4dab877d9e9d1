package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/civitest/civitest-backend/internal/config"
	"github.com/civitest/civitest-backend/internal/database"
	"github.com/civitest/civitest-backend/internal/logger"
	"github.com/civitest/civitest-backend/internal/service"
	"golang.org/x/term"
)

// mktoken mints development JWTs. Identity lives in an external provider
// in production; this tool exists so local and staging environments can
// exercise the API without it.
func main() {
	var (
		userID  = flag.Int("user", 0, "Mint an exam-taker token for this user ID")
		adminID = flag.Int("admin", 0, "Mint an admin token for this admin ID")
		reset   = flag.Bool("reset", false, "Reset the user's device session first")
	)
	flag.Parse()

	if (*userID == 0) == (*adminID == 0) {
		fmt.Println("Usage: mktoken -user <id> | mktoken -admin <id> [-reset]")
		os.Exit(1)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// Config defaults the secret when unset; minted tokens must never be
	// signed with that placeholder, so read the environment directly and
	// prompt when it is missing.
	secret, err := resolveSecret(os.Getenv("JWT_SECRET"), func() ([]byte, error) {
		fmt.Print("Enter JWT secret: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		return raw, err
	})
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	cfg.JWTSecret = secret

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	// Admin tokens have no device session, no Redis needed.
	if *adminID != 0 {
		tokens := service.NewTokenService(cfg, nil)
		token, err := tokens.GenerateAdminToken(*adminID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to mint admin token")
		}
		fmt.Println(token)
		return
	}

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	tokens := service.NewTokenService(cfg, rdb)

	if *reset {
		if err := tokens.ResetDeviceSession(ctx, *userID); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset device session")
		}
	}

	token, err := tokens.GenerateUserToken(ctx, *userID)
	if err != nil {
		if errors.Is(err, service.ErrSessionAlreadyActive) {
			fmt.Println("Error: a device session is already active for this user. Re-run with -reset.")
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("Failed to mint user token")
	}
	fmt.Println(token)
}

// resolveSecret picks the signing secret from the environment value, or
// falls back to the prompt when it is empty or whitespace.
func resolveSecret(fromEnv string, prompt func() ([]byte, error)) (string, error) {
	if s := strings.TrimSpace(fromEnv); s != "" {
		return s, nil
	}
	raw, err := prompt()
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "", errors.New("JWT secret is required")
	}
	return s, nil
}
