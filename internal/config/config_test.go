package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSourcesYAML = `sources:
  - name: CoinDesk
    type: crypto_media
    rss: https://www.coindesk.com/arc/outboundfeeds/rss/
  - name: SEC
    type: regulator
    rss: https://www.sec.gov/news/pressreleases.rss
rotation:
  - btc
  - eth
`

func writeSources(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(testSourcesYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearPGEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PG_DSN", "PGHOST", "PGPORT", "PGDATABASE", "PGUSER", "PGPASSWORD", "PGSSLMODE"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	clearPGEnv(t)
	t.Setenv("PG_DSN", "host=db port=5432 dbname=news user=u password=p sslmode=require")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SOURCES_CONFIG_PATH", writeSources(t))
	t.Setenv("FRESH_WINDOW_MIN", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.FreshWindow != 90*time.Minute {
		t.Errorf("FreshWindow = %v, want 90m", cfg.FreshWindow)
	}
	if cfg.VarietyLookback != 3 {
		t.Errorf("VarietyLookback default = %d, want 3", cfg.VarietyLookback)
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("GeminiModel default = %s", cfg.GeminiModel)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[1].Type != "regulator" {
		t.Errorf("sources not loaded: %+v", cfg.Sources)
	}
	if len(cfg.Rotation) != 2 {
		t.Errorf("rotation not loaded: %+v", cfg.Rotation)
	}
}

func TestLoadAssemblesDSNFromParts(t *testing.T) {
	clearPGEnv(t)
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPORT", "5432")
	t.Setenv("PGDATABASE", "news")
	t.Setenv("PGUSER", "ingestor")
	t.Setenv("PGPASSWORD", "secret")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SOURCES_CONFIG_PATH", writeSources(t))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !strings.Contains(cfg.DSN, "host=db.internal") || !strings.Contains(cfg.DSN, "sslmode=require") {
		t.Errorf("assembled DSN = %q", cfg.DSN)
	}
}

func TestLoadFailsFastWithoutDatabase(t *testing.T) {
	clearPGEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SOURCES_CONFIG_PATH", writeSources(t))

	if _, err := Load(); err == nil {
		t.Fatal("expected a fatal configuration error without Postgres settings")
	}
}

func TestLoadFailsFastWithoutGeminiKey(t *testing.T) {
	clearPGEnv(t)
	t.Setenv("PG_DSN", "host=db port=5432 dbname=news user=u password=p")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("SOURCES_CONFIG_PATH", writeSources(t))

	if _, err := Load(); err == nil {
		t.Fatal("expected a fatal configuration error without GEMINI_API_KEY")
	}
}

func TestLoadFailsOnMissingSourcesFile(t *testing.T) {
	clearPGEnv(t)
	t.Setenv("PG_DSN", "host=db port=5432 dbname=news user=u password=p")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SOURCES_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a missing sources file")
	}
}
