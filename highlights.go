package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

type LLMUsage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// generateHighlights asks the model for a short narrative paragraph about
// the sprint numbers, used at the top of published reports. Callers treat
// any error as "publish without highlights".
func generateHighlights(cfg Config, m Metrics, window Boundary, dataset string) (string, error) {
	model := cfg.LLMModel
	if model == "" {
		model = defaultAnthropicModel
	}
	systemPrompt, userPrompt := buildHighlightsPrompts(cfg.TeamName, dataset, m, window)
	text, usage, err := callAnthropic(cfg.AnthropicAPIKey, model, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	log.Printf("llm highlights tokens_in=%d tokens_out=%d", usage.InputTokens, usage.OutputTokens)
	return strings.TrimSpace(text), nil
}

func buildHighlightsPrompts(teamName, dataset string, m Metrics, window Boundary) (string, string) {
	systemPrompt := "You write one short paragraph (3-4 sentences, plain prose, no markdown, no bullet points) " +
		"summarizing a software team's sprint for an engineering manager. Mention completion against plan and " +
		"anything notable in the breakdowns. Do not invent numbers that are not in the input."

	var b strings.Builder
	fmt.Fprintf(&b, "Team: %s\nSprint window: %s\nDataset: %s\n\n", teamName, window, dataset)
	fmt.Fprintf(&b, "Completed: %.1f story points across %d items\n", m.CompletedPoints, m.CompletedCount)
	fmt.Fprintf(&b, "Planned: %.1f story points across %d tasks\n", m.PlannedPoints, m.TotalTasks)
	fmt.Fprintf(&b, "Completion rate: %.0f%%\n", m.CompletionRate*100)
	fmt.Fprintf(&b, "Scope drop: %.1f%% naive, %.1f%% against first-day plan\n", m.NaiveScopeDrop, m.ActualScopeDrop)
	fmt.Fprintf(&b, "Contributors: %d (%d full-time)\n", m.Contributors, m.FullTimeContributors)
	if m.AIAssistedPoints > 0 {
		fmt.Fprintf(&b, "AI-assisted story points: %.1f\n", m.AIAssistedPoints)
	}
	if len(m.ByPlatform) > 0 {
		b.WriteString("\nCompleted by platform:\n")
		for _, stat := range m.ByPlatform {
			fmt.Fprintf(&b, "- %s: %.1f SP (%d items)\n", stat.Name, stat.Points, stat.Count)
		}
	}
	if len(m.ByAssignee) > 0 {
		b.WriteString("\nCompleted by assignee:\n")
		for _, stat := range m.ByAssignee {
			fmt.Fprintf(&b, "- %s: %.1f SP (%d items)\n", stat.Name, stat.Points, stat.Count)
		}
	}
	return systemPrompt, b.String()
}

func callAnthropic(apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}
