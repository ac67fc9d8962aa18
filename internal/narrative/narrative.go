// Package narrative turns fit results into a short plain-language summary
// using OpenAI's API. It is strictly optional: callers skip it when no API
// key is configured.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/lapserate/internal/models"
)

const systemPrompt = "You are a climatologist summarizing temperature lapse-rate " +
	"regressions for a general audience. Two to four sentences, no markdown, " +
	"mention the typical lapse rate per 1000 m and any groups that stood out " +
	"or could not be fitted."

// Narrator generates result summaries.
type Narrator struct {
	client openai.Client
	model  string
}

// New reads OPENAI_API_KEY for authentication.
func New() (*Narrator, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Narrator{
		client: client,
		model:  openai.ChatModelGPT4oMini,
	}, nil
}

// Summarize narrates a batch of fit results.
func (n *Narrator) Summarize(ctx context.Context, fits []models.FitResult) (string, error) {
	if len(fits) == 0 {
		return "", errors.New("no fit results to summarize")
	}

	resp, err := n.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: n.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(BuildPrompt(fits)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrative completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt renders fit results as a compact text block for the model.
// Failed fits are listed with their cause so the narration can mention them.
func BuildPrompt(fits []models.FitResult) string {
	var b strings.Builder
	b.WriteString("Per-group OLS fits of average temperature vs elevation:\n")
	for _, f := range fits {
		if f.FitError.Valid {
			fmt.Fprintf(&b, "- %s %s: no fit (%s)\n", f.GroupedBy, f.GroupKey, f.FitError.String)
			continue
		}
		fmt.Fprintf(&b, "- %s %s: n=%d lapse=%.2f °C/km r2=%.3f\n",
			f.GroupedBy, f.GroupKey, f.N.Int64, f.LapsePerKm.Float64, f.R2.Float64)
	}
	return b.String()
}
