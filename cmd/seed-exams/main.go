package main

import (
	"context"
	"fmt"
	"time"

	"github.com/civitest/civitest-backend/internal/config"
	"github.com/civitest/civitest-backend/internal/database"
	"github.com/civitest/civitest-backend/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type seedQuestion struct {
	category string
	text     string
	options  []string
	correct  string
	points   float64
}

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	title := "Civil Service Aptitude Mock Exam"

	fmt.Println("=== Seeding Demo Exam ===")

	var examID uuid.UUID
	err = pool.QueryRow(ctx, "SELECT id FROM exams WHERE title = $1", title).Scan(&examID)
	if err == nil {
		fmt.Printf("Exam already seeded with ID: %s\n", examID)
		return
	}
	if err != pgx.ErrNoRows {
		log.Fatal().Err(err).Msg("Failed to check existing exam")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (title, duration_minutes) VALUES ($1, $2) RETURNING id`,
		title, 90,
	).Scan(&examID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to insert exam")
	}

	questions := []seedQuestion{
		{
			category: "Verbal Reasoning",
			text:     "Choose the word closest in meaning to CANDID.",
			options:  []string{"Reserved", "Frank", "Hostile", "Evasive", "Timid"},
			correct:  "B",
			points:   5,
		},
		{
			category: "Verbal Reasoning",
			text:     "Statute is to law as contract is to ...",
			options:  []string{"Agreement", "Court", "Judge", "Penalty", "Witness"},
			correct:  "A",
			points:   5,
		},
		{
			category: "Numerical Ability",
			text:     "A department spends 35% of its 2.4M budget on salaries. How much remains?",
			options:  []string{"840,000", "1,440,000", "1,560,000", "1,640,000", "1,760,000"},
			correct:  "C",
			points:   5,
		},
		{
			category: "Numerical Ability",
			text:     "What is the next number in the sequence 3, 7, 15, 31, ...?",
			options:  []string{"47", "55", "62", "63", "65"},
			correct:  "D",
			points:   5,
		},
		{
			category: "General Knowledge",
			text:     "Which branch of government interprets the laws?",
			options:  []string{"Executive", "Legislative", "Judicial", "Administrative", "Electoral"},
			correct:  "C",
			points:   5,
		},
	}

	for i, q := range questions {
		_, err := tx.Exec(ctx,
			`INSERT INTO questions (exam_id, order_num, category, text, options, correct_option, point_value)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			examID, i+1, q.category, q.text, q.options, q.correct, q.points,
		)
		if err != nil {
			log.Fatal().Err(err).Int("order", i+1).Msg("Failed to insert question")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to commit seed")
	}

	fmt.Printf("Seeded exam %s with %d questions\n", examID, len(questions))
}
