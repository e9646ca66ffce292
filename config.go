package main

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	DatasetsDir     string `yaml:"datasets_dir"`
	ReportOutputDir string `yaml:"report_output_dir"`
	TeamName        string `yaml:"team_name"`
	Timezone        string `yaml:"timezone"`

	DoneStatuses      []string `yaml:"done_statuses"`
	AILabel           string   `yaml:"ai_label"`
	FullTimeThreshold float64  `yaml:"full_time_threshold"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	SlackChannelID  string `yaml:"slack_channel_id"`
	PublishSchedule string `yaml:"publish_schedule"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	Location *time.Location `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.DatasetsDir, "DATASETS_DIR")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	envOverride(&cfg.TeamName, "TEAM_NAME")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.AILabel, "AI_LABEL")
	envOverrideFloat(&cfg.FullTimeThreshold, "FULL_TIME_THRESHOLD")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.PublishSchedule, "PUBLISH_SCHEDULE")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")

	if statuses := os.Getenv("DONE_STATUSES"); statuses != "" {
		cfg.DoneStatuses = nil
		for _, s := range strings.Split(statuses, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.DoneStatuses = append(cfg.DoneStatuses, s)
			}
		}
	}

	cfg.ApplyDefaults()

	// Validate
	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			log.Fatalf("invalid timezone '%s': %v", cfg.Timezone, err)
		}
		cfg.Location = loc
		time.Local = loc
	}
	if cfg.FullTimeThreshold < 0 {
		log.Fatalf("invalid full_time_threshold '%f': must be >= 0", cfg.FullTimeThreshold)
	}
	if cfg.SlackBotToken != "" && cfg.SlackChannelID == "" {
		log.Fatalf("slack_channel_id is required when slack_bot_token is set")
	}
	if cfg.PublishSchedule != "" && cfg.SlackBotToken == "" {
		log.Printf("publish_schedule set without slack_bot_token; scheduled reports will only be written to %s", cfg.ReportOutputDir)
	}

	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8337"
	}
	if c.DatasetsDir == "" {
		c.DatasetsDir = "./datasets"
	}
	if c.ReportOutputDir == "" {
		c.ReportOutputDir = "./reports"
	}
	if c.TeamName == "" {
		c.TeamName = "My Team"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if len(c.DoneStatuses) == 0 {
		c.DoneStatuses = []string{"Done"}
	}
	if c.AILabel == "" {
		c.AILabel = "ai-assisted"
	}
	if c.FullTimeThreshold == 0 {
		c.FullTimeThreshold = 5
	}
	if c.Location == nil {
		c.Location = time.Local
	}
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) LLMConfigured() bool {
	return c.AnthropicAPIKey != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
