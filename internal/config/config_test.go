package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BATCH_SIZE", "")
	t.Setenv("BATCH_CONCURRENCY", "")
	t.Setenv("MAX_FILE_SIZE_BYTES", "")
	t.Setenv("MIN_CONFIDENCE", "")
	t.Setenv("PROCESSING_TIMEOUT", "")

	cfg := Load()
	if cfg.BatchSize != 10 {
		t.Fatalf("expected default batch size 10, got %d", cfg.BatchSize)
	}
	if cfg.Concurrency != 3 {
		t.Fatalf("expected default concurrency 3, got %d", cfg.Concurrency)
	}
	if cfg.MaxFileSize != 50<<20 {
		t.Fatalf("expected default max file size 50MiB, got %d", cfg.MaxFileSize)
	}
	if cfg.MinConfidence != 0.6 {
		t.Fatalf("expected default min confidence 0.6, got %v", cfg.MinConfidence)
	}
	if cfg.ProcessingTimeout != 30*time.Second {
		t.Fatalf("expected default processing timeout 30s, got %v", cfg.ProcessingTimeout)
	}
	if cfg.KeywordWeight != 0.3 || cfg.PatternWeight != 0.4 || cfg.AIWeight != 0.3 {
		t.Fatalf("unexpected default fusion weights %v/%v/%v", cfg.KeywordWeight, cfg.PatternWeight, cfg.AIWeight)
	}
	if !cfg.CollectInsight {
		t.Fatal("expected insight collection enabled by default")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("BATCH_CONCURRENCY", "8")
	t.Setenv("MIN_CONFIDENCE", "0.45")
	t.Setenv("PROCESSING_TIMEOUT", "90s")
	t.Setenv("COLLECT_INSIGHT", "false")
	t.Setenv("CLASSIFICATION_CACHE_TTL", "15m")

	cfg := Load()
	if cfg.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.BatchSize)
	}
	if cfg.Concurrency != 8 {
		t.Fatalf("expected concurrency 8, got %d", cfg.Concurrency)
	}
	if cfg.MinConfidence != 0.45 {
		t.Fatalf("expected min confidence 0.45, got %v", cfg.MinConfidence)
	}
	if cfg.ProcessingTimeout != 90*time.Second {
		t.Fatalf("expected processing timeout 90s, got %v", cfg.ProcessingTimeout)
	}
	if cfg.CollectInsight {
		t.Fatal("expected insight collection disabled")
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Fatalf("expected cache ttl 15m, got %v", cfg.CacheTTL)
	}
}

func TestLoadIgnoresUnparsableValues(t *testing.T) {
	t.Setenv("BATCH_SIZE", "not-a-number")
	t.Setenv("MIN_CONFIDENCE", "many")
	t.Setenv("PROCESSING_TIMEOUT", "soon")

	cfg := Load()
	if cfg.BatchSize != 10 {
		t.Fatalf("unparsable int must fall back to default, got %d", cfg.BatchSize)
	}
	if cfg.MinConfidence != 0.6 {
		t.Fatalf("unparsable float must fall back to default, got %v", cfg.MinConfidence)
	}
	if cfg.ProcessingTimeout != 30*time.Second {
		t.Fatalf("unparsable duration must fall back to default, got %v", cfg.ProcessingTimeout)
	}
}
