// Package explain generates the natural-language analysis for a report,
// via an external generative provider when configured and a
// deterministic fallback otherwise.
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/rohanverma/lablens/internal/assemble"
	"github.com/rohanverma/lablens/internal/llm"
)

const explainPrompt = `You are a safety-first health trajectory interpreter.

Rules:
- Explain only from the provided data.
- No diagnosis and no medication advice.
- Use calm, actionable, non-alarming language.
- Mention trends, borderline concerns, and changes over time.
- Produce practical lifestyle guidance only.

Return ONLY valid JSON with this schema:
{
  "narrative": "long-form plain-language explanation",
  "summary": "short plain-language summary",
  "trend_summary": "what is increasing/decreasing/stable",
  "clinician_summary": "concise handoff summary for doctor consultation",
  "notes_considered": ["clinician notes from the report you took into account"]
}

DATA:
%s`

// Output is a complete generated analysis. Every field is guaranteed
// non-empty after generation; the fallback backfills anything missing.
type Output struct {
	Narrative        string
	Summary          string
	TrendText        string
	ClinicianSummary string
	NotesConsidered  []string
	// Raw is the generation payload as returned by the provider, or
	// the fallback fields when no provider response was usable.
	Raw map[string]any
	// Fallback reports whether the deterministic path produced this
	// output.
	Fallback bool
}

// Generator produces analyses from context payloads.
type Generator struct {
	provider  llm.Provider
	maxTokens int
}

// NewGenerator creates a generator. A nil provider routes every request
// to the deterministic fallback.
func NewGenerator(provider llm.Provider, maxTokens int) *Generator {
	if maxTokens == 0 {
		maxTokens = 1024
	}
	return &Generator{provider: provider, maxTokens: maxTokens}
}

// Generate builds the analysis for a payload. Provider failures of any
// kind (network, status, timeout, unparseable output) degrade to the
// fallback; Generate itself never fails.
func (g *Generator) Generate(ctx context.Context, payload *assemble.Payload) Output {
	if g.provider == nil {
		return Fallback(payload)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		log.Printf("encoding context payload: %v", err)
		return Fallback(payload)
	}

	responseText, err := g.provider.Generate(ctx, fmt.Sprintf(explainPrompt, data), g.maxTokens)
	if err != nil {
		log.Printf("generation failed, using fallback: %v", err)
		return Fallback(payload)
	}

	parsed := llm.ParseJSONResponse(responseText)
	if parsed == nil {
		log.Printf("generation response not parseable, using fallback")
		return Fallback(payload)
	}

	return normalize(parsed, payload)
}

// normalize coerces each expected field to a string and backfills empty
// fields from the fallback output.
func normalize(parsed map[string]any, payload *assemble.Payload) Output {
	fb := Fallback(payload)

	out := Output{
		Narrative:        llm.CoerceString(parsed["narrative"]),
		Summary:          llm.CoerceString(parsed["summary"]),
		TrendText:        llm.CoerceString(parsed["trend_summary"]),
		ClinicianSummary: llm.CoerceString(parsed["clinician_summary"]),
		Raw:              parsed,
	}
	if out.Narrative == "" {
		out.Narrative = fb.Narrative
	}
	if out.Summary == "" {
		out.Summary = fb.Summary
	}
	if out.TrendText == "" {
		out.TrendText = fb.TrendText
	}
	if out.ClinicianSummary == "" {
		out.ClinicianSummary = fb.ClinicianSummary
	}

	if notes, ok := parsed["notes_considered"].([]any); ok {
		for _, n := range notes {
			if s := llm.CoerceString(n); s != "" {
				out.NotesConsidered = append(out.NotesConsidered, s)
			}
		}
	}
	if len(out.NotesConsidered) == 0 {
		out.NotesConsidered = fb.NotesConsidered
	}

	return out
}
