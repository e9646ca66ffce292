package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("TIMEZONE", "UTC")

	cfg := LoadConfig()

	if cfg.ListenAddr != ":8337" {
		t.Fatalf("unexpected listen addr default: %q", cfg.ListenAddr)
	}
	if cfg.DatasetsDir != "./datasets" {
		t.Fatalf("unexpected datasets dir default: %q", cfg.DatasetsDir)
	}
	if cfg.ReportOutputDir != "./reports" {
		t.Fatalf("unexpected report output dir default: %q", cfg.ReportOutputDir)
	}
	if cfg.TeamName != "My Team" {
		t.Fatalf("unexpected team name default: %q", cfg.TeamName)
	}
	if len(cfg.DoneStatuses) != 1 || cfg.DoneStatuses[0] != "Done" {
		t.Fatalf("unexpected done statuses default: %v", cfg.DoneStatuses)
	}
	if cfg.AILabel != "ai-assisted" {
		t.Fatalf("unexpected AI label default: %q", cfg.AILabel)
	}
	if cfg.FullTimeThreshold != 5 {
		t.Fatalf("unexpected full-time threshold default: %f", cfg.FullTimeThreshold)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if cfg.SlackConfigured() || cfg.LLMConfigured() {
		t.Fatal("publishing should be unconfigured by default")
	}
}

func TestLoadConfigYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
team_name: "YAML Team"
datasets_dir: "/tmp/yaml-datasets"
done_statuses: ["Done", "Closed"]
full_time_threshold: 8
timezone: "America/Los_Angeles"
slack_bot_token: "xoxb-yaml"
slack_channel_id: "C12345"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("TEAM_NAME", "Env Team")
	t.Setenv("FULL_TIME_THRESHOLD", "3.5")
	t.Setenv("DONE_STATUSES", "Done, Released ,")

	cfg := LoadConfig()

	if cfg.TeamName != "Env Team" {
		t.Fatalf("expected team name from env override, got %q", cfg.TeamName)
	}
	if cfg.DatasetsDir != "/tmp/yaml-datasets" {
		t.Fatalf("expected datasets dir from yaml, got %q", cfg.DatasetsDir)
	}
	if cfg.FullTimeThreshold != 3.5 {
		t.Fatalf("expected full-time threshold from env override, got %f", cfg.FullTimeThreshold)
	}
	if len(cfg.DoneStatuses) != 2 || cfg.DoneStatuses[0] != "Done" || cfg.DoneStatuses[1] != "Released" {
		t.Fatalf("expected done statuses from env override, got %v", cfg.DoneStatuses)
	}
	if !cfg.SlackConfigured() {
		t.Fatal("expected slack configured from yaml token and channel")
	}
	if cfg.Location == nil || cfg.Location.String() != "America/Los_Angeles" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("SB_TEST_STR", "value")
	envOverride(&s, "SB_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}
	envOverride(&s, "SB_TEST_STR_UNSET")
	if s != "value" {
		t.Fatalf("envOverride must not clear on unset var, got %q", s)
	}

	f := 0.1
	t.Setenv("SB_TEST_FLOAT", "0.75")
	envOverrideFloat(&f, "SB_TEST_FLOAT")
	if f != 0.75 {
		t.Fatalf("envOverrideFloat failed, got %f", f)
	}
}

func TestMetricsOptionsFromConfig(t *testing.T) {
	cfg := Config{FullTimeThreshold: 7, AILabel: "copilot"}
	opts := cfg.MetricsOptions()
	if opts.FullTimeThreshold != 7 || opts.AILabel != "copilot" {
		t.Fatalf("unexpected metrics options: %+v", opts)
	}
}

func TestLoadConfigInvalidTimezoneFatal(t *testing.T) {
	if os.Getenv("TEST_INVALID_TZ_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("TIMEZONE", "Mars/Colony")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigInvalidTimezoneFatal")
	cmd.Env = append(os.Environ(), "TEST_INVALID_TZ_FATAL=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got: %v", err)
	}
}

func TestLoadConfigSlackTokenRequiresChannel(t *testing.T) {
	if os.Getenv("TEST_SLACK_CHANNEL_FATAL") == "1" {
		_ = os.Setenv("CONFIG_PATH", filepath.Join(os.TempDir(), "no-config.yaml"))
		_ = os.Setenv("TIMEZONE", "UTC")
		_ = os.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
		LoadConfig()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestLoadConfigSlackTokenRequiresChannel")
	cmd.Env = append(os.Environ(), "TEST_SLACK_CHANNEL_FATAL=1")
	if err := cmd.Run(); err == nil {
		t.Fatal("expected subprocess to exit with failure")
	}
}
