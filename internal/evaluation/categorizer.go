package evaluation

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/ligth279/xilov5-overhual/pkg/ai"
)

// Verdict is the coarse relatedness judgment of a wrong answer.
type Verdict string

const (
	VerdictRelated   Verdict = "related"
	VerdictUnrelated Verdict = "unrelated"
)

// Categorization is what the model made of a wrong answer.
type Categorization struct {
	Verdict     Verdict
	Explanation string
}

// Categorizer judges whether a wrong answer is on topic. Failures must wrap
// ErrModelUnavailable.
type Categorizer interface {
	Categorize(ctx context.Context, q Question, studentAnswer string, hintLevel int) (Categorization, error)
}

// CategorizerConfig tunes the generation settings used for verdicts.
type CategorizerConfig struct {
	Temperature float64
	MaxTokens   int
}

const categorizerSystemPrompt = `You are a patient tutor. Analyze the student's answer and categorize it:

CATEGORY 1 - SLIGHTLY WRONG (spelling error, close variation):
- Point to the right part without revealing the answer.

CATEGORY 2 - WRONG BUT ON TOPIC (related concept, but not what we're looking for):
- Explain what they wrote and clarify what the question is asking for.

CATEGORY 3 - COMPLETELY UNRELATED (off-topic, random answer):
- Return EXACTLY: "UNRELATED"

Keep hints SHORT (1-2 sentences). Never reveal the answer directly.`

var categorizerPrompt = template.Must(template.New("categorize").Parse(`Question: {{.Question}}
Expected answer (never reveal it): {{.Expected}}
{{- if .Topic}}
Topic: {{.Topic}}
{{- end}}
Student answered: {{.Answer}}
Hint level: {{.HintLevel}}

Categorize and give appropriate hint:`))

var (
	categoryLabel = regexp.MustCompile(`(?im)^CATEGORY \d+[ \t]*-[ \t]*[A-Z ]+(?::[ \t]*|\n|$)`)
	hintLabel     = regexp.MustCompile(`(?i)^hint:\s*`)
	leadingDash   = regexp.MustCompile(`^\s*-\s*`)
)

// ModelCategorizer asks a language model for the verdict.
type ModelCategorizer struct {
	model ai.Generator
	cfg   CategorizerConfig
}

// NewModelCategorizer builds a categorizer on top of model.
func NewModelCategorizer(model ai.Generator, cfg CategorizerConfig) *ModelCategorizer {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 100
	}
	return &ModelCategorizer{model: model, cfg: cfg}
}

// Categorize renders the prompt, calls the model once and parses the reply.
func (c *ModelCategorizer) Categorize(ctx context.Context, q Question, studentAnswer string, hintLevel int) (Categorization, error) {
	if c.model == nil {
		return Categorization{}, fmt.Errorf("%w: no model configured", ErrModelUnavailable)
	}

	var prompt bytes.Buffer
	err := categorizerPrompt.Execute(&prompt, map[string]interface{}{
		"Question":  q.Prompt,
		"Expected":  q.ExpectedAnswer,
		"Topic":     q.Topic,
		"Answer":    studentAnswer,
		"HintLevel": hintLevel,
	})
	if err != nil {
		return Categorization{}, fmt.Errorf("render categorize prompt: %w", err)
	}

	reply, err := c.model.Generate(ctx, prompt.String(), ai.Options{
		System:      categorizerSystemPrompt,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return Categorization{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	return ParseCategorization(reply), nil
}

// ParseCategorization maps raw model output to a verdict. Any mention of
// UNRELATED wins; everything else is a related hint with labels stripped.
func ParseCategorization(reply string) Categorization {
	text := strings.Trim(strings.TrimSpace(reply), `"'`)
	if strings.Contains(strings.ToUpper(text), "UNRELATED") {
		return Categorization{Verdict: VerdictUnrelated}
	}

	text = categoryLabel.ReplaceAllString(text, "")
	text = hintLabel.ReplaceAllString(strings.TrimSpace(text), "")
	text = leadingDash.ReplaceAllString(text, "")

	return Categorization{Verdict: VerdictRelated, Explanation: strings.TrimSpace(text)}
}
