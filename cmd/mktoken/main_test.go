package main

import (
	"errors"
	"testing"
)

func TestResolveSecretFromEnv(t *testing.T) {
	secret, err := resolveSecret("topsecret", func() ([]byte, error) {
		t.Fatal("prompt must not run when the environment carries a secret")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("resolveSecret: %v", err)
	}
	if secret != "topsecret" {
		t.Errorf("secret = %q, want topsecret", secret)
	}
}

func TestResolveSecretPromptsWhenEnvEmpty(t *testing.T) {
	for _, env := range []string{"", "   "} {
		secret, err := resolveSecret(env, func() ([]byte, error) {
			return []byte(" prompted \n"), nil
		})
		if err != nil {
			t.Fatalf("env %q: resolveSecret: %v", env, err)
		}
		if secret != "prompted" {
			t.Errorf("env %q: secret = %q, want prompted", env, secret)
		}
	}
}

func TestResolveSecretRejectsEmptyPrompt(t *testing.T) {
	if _, err := resolveSecret("", func() ([]byte, error) {
		return []byte("  "), nil
	}); err == nil {
		t.Error("empty prompted secret must be rejected")
	}
}

func TestResolveSecretPropagatesPromptError(t *testing.T) {
	promptErr := errors.New("no tty")
	_, err := resolveSecret("", func() ([]byte, error) {
		return nil, promptErr
	})
	if !errors.Is(err, promptErr) {
		t.Errorf("err = %v, want wrapped prompt error", err)
	}
}
