package assistant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/galeops/windfleet/internal/models"
)

// SummaryGenerator produces the daily fleet summary shown in the assistant
// panel using OpenAI's API.
type SummaryGenerator struct {
	client openai.Client
	model  string
}

// NewSummaryGenerator reads OPENAI_API_KEY for authentication. Callers fall
// back to StaticSummary when the key is absent.
func NewSummaryGenerator() (*SummaryGenerator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &SummaryGenerator{
		client: client,
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Generate builds a summary from current fleet KPIs.
func (g *SummaryGenerator) Generate(ctx context.Context, kpis models.FleetKPIs) (*models.AssistantSummary, error) {
	prompt := fmt.Sprintf(
		"Fleet status: %d turbines total, %d optimal, %d moderate, %d in maintenance. "+
			"Fleet health %.1f%%. Daily energy production %.1f GWh. "+
			"Write a two-sentence operator greeting and exactly three priority items, one per line, prefixed with '- '.",
		kpis.TotalTurbines, kpis.OptimalTurbines, kpis.ModerateTurbines, kpis.MaintenanceTurbines,
		kpis.FleetHealthPct, kpis.TotalEnergyGWh,
	)

	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are the operations assistant for a wind turbine fleet dashboard. Be concise and concrete."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("summary generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("summary generation returned no choices")
	}

	summary := StaticSummary(kpis)
	message, items := splitSummary(resp.Choices[0].Message.Content)
	if message != "" {
		summary.Message = message
	}
	if len(items) > 0 {
		summary.PriorityItems = items
	}
	return summary, nil
}

// splitSummary separates the greeting paragraph from "- " priority lines.
func splitSummary(text string) (string, []string) {
	var messageLines, items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "- ") {
			items = append(items, strings.TrimPrefix(line, "- "))
		} else {
			messageLines = append(messageLines, line)
		}
	}
	return strings.Join(messageLines, " "), items
}

// StaticSummary is the fallback summary used when no API key is configured.
func StaticSummary(kpis models.FleetKPIs) *models.AssistantSummary {
	return &models.AssistantSummary{
		Message: "Good morning! Your fleet is performing well today with optimal weather conditions.",
		PriorityItems: []string{
			fmt.Sprintf("%d turbines require maintenance attention", kpis.MaintenanceTurbines),
			fmt.Sprintf("%d turbines reporting moderate status - monitoring recommended", kpis.ModerateTurbines),
			"Wind forecast shows increased output potential for next 48 hours",
		},
		WeatherStatus: "Optimal - Wind speed 15-25 km/h, clear conditions",
		PerformanceSummary: fmt.Sprintf(
			"Fleet health at %.1f%%. Current output: %.1f GWh",
			kpis.FleetHealthPct, kpis.TotalEnergyGWh,
		),
	}
}
