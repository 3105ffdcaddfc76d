package config

import "testing"

func TestLoadIncludesRetrievalDefaults(t *testing.T) {
	t.Setenv("ENTITY_SCORE_THRESHOLD", "")
	t.Setenv("NAVIGATOR_TIMEOUT_SECONDS", "")
	t.Setenv("NAVIGATOR_MAX_NODES", "")
	t.Setenv("RETRIEVAL_TOP_K", "")
	t.Setenv("NATS_SUBJECT", "")

	cfg := Load()
	if cfg.EntityScoreThreshold != 0.3 {
		t.Fatalf("expected default entity threshold 0.3, got %v", cfg.EntityScoreThreshold)
	}
	if cfg.NavigatorTimeoutSeconds != 8 {
		t.Fatalf("expected default navigator timeout 8, got %d", cfg.NavigatorTimeoutSeconds)
	}
	if cfg.NavigatorMaxNodes != 3 {
		t.Fatalf("expected default navigator max nodes 3, got %d", cfg.NavigatorMaxNodes)
	}
	if cfg.RetrievalTopK != 5 {
		t.Fatalf("expected default retrieval top k 5, got %d", cfg.RetrievalTopK)
	}
	if cfg.NATSSubject != "knowledge.rebuilt" {
		t.Fatalf("expected default rebuild subject, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesRetrievalOverrides(t *testing.T) {
	t.Setenv("ENTITY_SCORE_THRESHOLD", "0.45")
	t.Setenv("NAVIGATOR_TIMEOUT_SECONDS", "10")
	t.Setenv("RETRIEVAL_TOP_K", "8")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")

	cfg := Load()
	if cfg.EntityScoreThreshold != 0.45 {
		t.Fatalf("expected entity threshold override, got %v", cfg.EntityScoreThreshold)
	}
	if cfg.NavigatorTimeoutSeconds != 10 {
		t.Fatalf("expected navigator timeout 10, got %d", cfg.NavigatorTimeoutSeconds)
	}
	if cfg.RetrievalTopK != 8 {
		t.Fatalf("expected retrieval top k 8, got %d", cfg.RetrievalTopK)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	t.Setenv("ENTITY_SCORE_THRESHOLD", "not-a-number")
	t.Setenv("NAVIGATOR_MAX_NODES", "three")

	cfg := Load()
	if cfg.EntityScoreThreshold != 0.3 {
		t.Fatalf("malformed float must fall back, got %v", cfg.EntityScoreThreshold)
	}
	if cfg.NavigatorMaxNodes != 3 {
		t.Fatalf("malformed int must fall back, got %d", cfg.NavigatorMaxNodes)
	}
}
