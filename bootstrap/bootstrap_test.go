package bootstrap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/artpar/metergate/bootstrap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestNew_JSONDriver(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
auth:
  key: "secret"
stats:
  mode: "sync"
daily:
  driver: "json"
  path: "`+filepath.Join(dir, "daily.json")+`"
`)

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	if a.Engine == nil {
		t.Fatal("Engine not initialized")
	}
	if a.HTTPServer == nil {
		t.Fatal("HTTPServer not initialized")
	}
	if a.Holder == nil {
		t.Fatal("Holder not initialized for file config")
	}

	// Engine is live: record synchronously and read back.
	a.Engine.RecordUsage("abc123", "gemini-2.5-flash", 10)
	if got := a.Engine.UsageByCaller("abc123", ""); got != 1 {
		t.Errorf("UsageByCaller = %d, want 1", got)
	}
}

func TestNew_SQLiteDriver(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
auth:
  key: "secret"
stats:
  mode: "sync"
daily:
  driver: "sqlite"
  path: "`+filepath.Join(dir, "meter.db")+`"
`)

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	if a.Engine == nil {
		t.Fatal("Engine not initialized")
	}
}

func TestNew_EnvOnly(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("METERGATE_AUTH_KEY", "env-secret")
	os.Setenv("METERGATE_STATS_MODE", "sync")
	os.Setenv("METERGATE_DAILY_PATH", filepath.Join(dir, "daily.json"))
	defer func() {
		os.Unsetenv("METERGATE_AUTH_KEY")
		os.Unsetenv("METERGATE_STATS_MODE")
		os.Unsetenv("METERGATE_DAILY_PATH")
	}()

	a, err := bootstrap.New(bootstrap.Options{})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	if a.Holder != nil {
		t.Error("Holder should be nil for env-only config")
	}
	if a.Config() != nil {
		t.Error("Config() should be nil without a holder")
	}
}

func TestNew_DailyLimitReload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
auth:
  key: "secret"
stats:
  mode: "sync"
  daily_limit: 100
daily:
  path: "`+filepath.Join(dir, "daily.json")+`"
`)

	a, err := bootstrap.New(bootstrap.Options{ConfigPath: path})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	defer a.Shutdown()

	a.Engine.RecordUsage("abc123", "gemini-2.5-flash", 10)
	before := a.Engine.CallerStats([]string{"abc123"})
	if before[0].UsagePercent != 1.0 {
		t.Fatalf("UsagePercent = %v, want 1.0 at limit 100", before[0].UsagePercent)
	}

	newContent := `
auth:
  key: "secret"
stats:
  mode: "sync"
  daily_limit: 10
daily:
  path: "` + filepath.Join(dir, "daily.json") + `"
`
	if err := os.WriteFile(path, []byte(newContent), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	if err := a.Holder.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	after := a.Engine.CallerStats([]string{"abc123"})
	if after[0].UsagePercent != 10.0 {
		t.Errorf("UsagePercent = %v, want 10.0 after limit reload", after[0].UsagePercent)
	}
}
