package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("SCHEDULER_INTERVAL_MIN", "5")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SchedulerInterval != 5*time.Minute {
		t.Errorf("SchedulerInterval = %v", cfg.SchedulerInterval)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.FrontendURL != "https://app.example.com" {
		t.Errorf("FrontendURL = %q", cfg.FrontendURL)
	}
	if cfg.MongoDBName != "jobcat" {
		t.Errorf("MongoDBName = %q", cfg.MongoDBName)
	}
	if cfg.LLMTokenBudget != 6000 {
		t.Errorf("LLMTokenBudget = %d", cfg.LLMTokenBudget)
	}
	if cfg.LLMMaxRetries != 3 || cfg.LLMBreakerTrips != 5 {
		t.Errorf("LLM retries = %d, breaker trips = %d", cfg.LLMMaxRetries, cfg.LLMBreakerTrips)
	}
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWKS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without auth secrets")
	}

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("TOKEN_ENCRYPTION_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without encryption key")
	}
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
		check   func(t *testing.T, p *Policy)
	}{
		{
			name: "empty path",
			path: "",
			check: func(t *testing.T, p *Policy) {
				if p.LookbackDays != 0 || p.CompanyMatchThreshold != 0 {
					t.Errorf("expected zero policy, got %+v", p)
				}
			},
		},
		{
			name: "overrides",
			path: write("ok.yaml", `
company_match_threshold: 0.6
lookback_days: 30
classify_concurrency: 4
prefilter:
  ats_domains: [jobs.example.com]
  keywords: [apprenticeship]
`),
			check: func(t *testing.T, p *Policy) {
				if p.CompanyMatchThreshold != 0.6 || p.LookbackDays != 30 || p.ClassifyConcurrency != 4 {
					t.Errorf("unexpected policy %+v", p)
				}
				if len(p.Prefilter.ATSDomains) != 1 || p.Prefilter.Keywords[0] != "apprenticeship" {
					t.Errorf("unexpected prefilter %+v", p.Prefilter)
				}
			},
		},
		{name: "threshold out of range", path: write("bad.yaml", "keyword_match_threshold: 1.5\n"), wantErr: true},
		{name: "negative lookback", path: write("neg.yaml", "lookback_days: -1\n"), wantErr: true},
		{name: "malformed", path: write("broken.yaml", "lookback_days: [\n"), wantErr: true},
		{name: "missing file", path: filepath.Join(dir, "nope.yaml"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LoadPolicy(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}
