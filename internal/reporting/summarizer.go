// internal/reporting/summarizer.go
package reporting

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/failcase/repro-cli/api/schemas"
	"github.com/failcase/repro-cli/internal/config"
)

// Summarizer renders the run summary handed to terminals, bug-store notes,
// and pull request bodies.
type Summarizer interface {
	Summarize(ctx context.Context, report *schemas.RunReport) string
}

// TemplateSummarizer renders the deterministic template. It never fails.
type TemplateSummarizer struct{}

func (TemplateSummarizer) Summarize(_ context.Context, report *schemas.RunReport) string {
	return Summary(report)
}

// contentGenerator is the model call behind the Gemini summarizer; tests
// substitute a fake.
type contentGenerator interface {
	generate(ctx context.Context, model, prompt string) (string, error)
}

type genaiGenerator struct {
	client *genai.Client
}

func (g genaiGenerator) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

const summaryPrompt = `Rewrite this automated browser run report as a short prose summary for a bug tracker. Keep the step numbers, error kinds and screenshot references exact. Do not invent details.

`

// GeminiSummarizer asks a model to draft prose from the template rendering.
// Every failure falls back to the template; a summary must never block the
// run that produced it.
type GeminiSummarizer struct {
	gen   contentGenerator
	model string
	log   *zap.Logger
}

func (g *GeminiSummarizer) Summarize(ctx context.Context, report *schemas.RunReport) string {
	rendered := Summary(report)

	text, err := g.gen.generate(ctx, g.model, summaryPrompt+rendered)
	if err != nil {
		g.log.Warn("Gemini summary failed, falling back to template", zap.Error(err))
		return rendered
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.log.Warn("Gemini summary came back empty, falling back to template")
		return rendered
	}
	return text + "\n"
}

// NewSummarizer picks the provider from config. Anything short of a fully
// configured gemini provider resolves to the template.
func NewSummarizer(ctx context.Context, cfg config.SummaryConfig, logger *zap.Logger) Summarizer {
	if cfg.Provider != "gemini" {
		return TemplateSummarizer{}
	}
	if cfg.APIKey == "" {
		logger.Warn("summary.provider is gemini but no API key is set, using template")
		return TemplateSummarizer{}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logger.Warn("Gemini client unavailable, using template", zap.Error(err))
		return TemplateSummarizer{}
	}
	return &GeminiSummarizer{
		gen:   genaiGenerator{client: client},
		model: cfg.Model,
		log:   logger.Named("summary"),
	}
}
