// Package pipeline orchestrates a full analysis pass over one report:
// extract, classify, assemble, guard input, generate, guard output, and
// persist the complete result set in a single transaction.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rohanverma/lablens/internal/assemble"
	"github.com/rohanverma/lablens/internal/classify"
	"github.com/rohanverma/lablens/internal/config"
	"github.com/rohanverma/lablens/internal/database"
	"github.com/rohanverma/lablens/internal/explain"
	"github.com/rohanverma/lablens/internal/extract"
	"github.com/rohanverma/lablens/internal/guardrail"
	"github.com/rohanverma/lablens/internal/llm"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
}

// Result holds the results of a full analysis pass.
type Result struct {
	ReportID   string
	Steps      []StepResult
	Fallback   bool
	Confidence string
}

// Pipeline runs the 6-step analysis pass.
type Pipeline struct {
	cfg       *config.Config
	db        *database.DB
	generator *explain.Generator
	vision    extract.VisionCaller
	guard     *guardrail.InputGuard
}

// New creates a pipeline from configuration. Missing provider
// credentials are not an error; the pass degrades to deterministic
// output.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	ex := cfg.Explain
	timeout := time.Duration(ex.TimeoutSeconds) * time.Second
	provider := llm.CreateProvider(
		ex.Provider, ex.Model, ex.BaseURL, ex.APIKeyEnv,
		ex.OllamaURL, ex.OllamaModel, timeout,
	)

	var inspector guardrail.ImageInspector
	if cfg.Guardrails.InspectImages {
		inspector = guardrail.FileInspector{}
	}

	return &Pipeline{
		cfg:       cfg,
		db:        db,
		generator: explain.NewGenerator(provider, ex.MaxTokens),
		vision:    llm.NewVisionClient(ex.BaseURL, ex.APIKeyEnv, timeout),
		guard:     guardrail.NewInputGuard(inspector),
	}
}

// Process runs the full pass for a report. Extraction, generation, and
// guardrail problems degrade the output instead of failing; only a
// missing report or a persistence failure returns an error.
func (p *Pipeline) Process(ctx context.Context, reportID string) (*Result, error) {
	report, err := p.db.GetReport(reportID)
	if err != nil {
		return nil, fmt.Errorf("loading report: %w", err)
	}
	if report == nil {
		return nil, fmt.Errorf("report %s not found", reportID)
	}

	r := &Result{ReportID: reportID}

	// Step 1: Extract
	log.Println("Step 1/6: Extracting measurements...")
	extraction := extract.Extract(ctx, report, p.vision, p.cfg.Explain.VisionModels)
	r.Steps = append(r.Steps, StepResult{
		Name:    "Extract",
		Summary: fmt.Sprintf("Extracted %d measurements, %d notes", len(extraction.Measurements), len(extraction.Notes)),
	})

	// Step 2: Classify
	log.Println("Step 2/6: Classifying against reference ranges...")
	flagged := 0
	for i := range extraction.Measurements {
		m := &extraction.Measurements[i]
		m.Risk = classify.Classify(m.Value, m.RefMin, m.RefMax)
		if m.Risk == classify.RiskHigh || m.Risk == classify.RiskLow {
			flagged++
		}
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Classify",
		Summary: fmt.Sprintf("Classified %d measurements, %d out of range", len(extraction.Measurements), flagged),
	})

	// Step 3: Assemble context
	log.Println("Step 3/6: Assembling longitudinal context...")
	payload, err := assemble.Build(p.db, report, extraction.Measurements, extraction.Notes)
	if err != nil {
		return nil, err
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Assemble",
		Summary: fmt.Sprintf("Context spans %d reports", len(payload.Reports)),
	})

	// Step 4: Input guardrails
	log.Println("Step 4/6: Running input guardrails...")
	verdict := p.guard.Check(report, extraction.Measurements)
	r.Steps = append(r.Steps, StepResult{
		Name:    "InputGuard",
		Summary: fmt.Sprintf("Safe=%t confidence=%.2f", verdict.Safe, verdict.Confidence),
	})

	// Step 5: Generate explanation
	log.Println("Step 5/6: Generating explanation...")
	output := p.generator.Generate(ctx, payload)
	r.Fallback = output.Fallback
	mode := "provider"
	if output.Fallback {
		mode = "fallback"
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Generate",
		Summary: fmt.Sprintf("Explanation generated (%s)", mode),
	})

	// Step 6: Output guardrails and atomic persistence
	log.Println("Step 6/6: Validating output and persisting...")
	fields, meta := guardrail.CheckOutput(guardrail.Fields{
		Narrative:        output.Narrative,
		Summary:          output.Summary,
		TrendText:        output.TrendText,
		ClinicianSummary: output.ClinicianSummary,
	}, extraction.Measurements, verdict.Confidence)
	meta["input_validation"] = verdict
	r.Confidence = fmt.Sprintf("%v", meta["confidence"])

	analysis := &database.Analysis{
		ReportID:         reportID,
		Narrative:        fields.Narrative,
		Summary:          fields.Summary,
		TrendText:        fields.TrendText,
		ClinicianSummary: fields.ClinicianSummary,
		RawPayload:       output.Raw,
		GuardrailMeta:    meta,
	}

	// For image uploads with nothing extractable, store the diagnostic
	// as raw text so the report page can show what went wrong.
	var rawText *string
	if extraction.Diagnostic != "" && (report.RawText == nil || *report.RawText == "") {
		rawText = &extraction.Diagnostic
	}

	if err := p.db.ReplaceResults(reportID, extraction.Measurements, analysis, rawText, extraction.Notes); err != nil {
		return nil, fmt.Errorf("persisting results: %w", err)
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Persist",
		Summary: fmt.Sprintf("Stored %d measurements and analysis (confidence %s)", len(extraction.Measurements), r.Confidence),
	})

	return r, nil
}
