package advice

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pgEdge/data-gatekeeper/internal/models"
)

// AnthropicAdvisor is an optional Advisor implementation that asks a
// model to summarize a schema diff in plain language. It is never
// wired into the default CLI path; a caller must opt in explicitly.
type AnthropicAdvisor struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicAdvisor builds an Advisor against the given API key. The
// caller is responsible for keeping this optional and non-default.
func NewAnthropicAdvisor(apiKey string) AnthropicAdvisor {
	return AnthropicAdvisor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model("claude-3-5-haiku-latest"),
	}
}

func (a AnthropicAdvisor) Advise(ctx context.Context, c *models.Contract, diff models.SchemaDiff) (string, error) {
	if len(diff.MissingColumns) == 0 && len(diff.UnexpectedColumns) == 0 && len(diff.TypeMismatches) == 0 {
		return "", nil
	}

	prompt := describeDiff(c.TableName, diff)
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("advisor request: %w", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func describeDiff(table string, diff models.SchemaDiff) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Table %q has a schema diff. Summarize it for a data engineer in two sentences.\n", table)
	if len(diff.MissingColumns) > 0 {
		fmt.Fprintf(&sb, "Missing columns: %v\n", diff.MissingColumns)
	}
	if len(diff.UnexpectedColumns) > 0 {
		fmt.Fprintf(&sb, "Unexpected columns: %v\n", diff.UnexpectedColumns)
	}
	if len(diff.TypeMismatches) > 0 {
		fmt.Fprintf(&sb, "Type mismatches: %v\n", diff.TypeMismatches)
	}
	return sb.String()
}
