package extract

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rohanverma/lablens/internal/database"
	"github.com/rohanverma/lablens/internal/llm"
)

// visionPrompt is the fixed instruction sent with report photographs.
const visionPrompt = `Extract lab parameters from this medical report image and return strict JSON only.
Format: {"parameters":[{"name":"Hemoglobin","value":11.2,"unit":"g/dL","ref_min":12,"ref_max":16}],"doctor_suggestions":["optional clinician remarks"]}
Rules: include only rows with numeric values, use null for missing ref_min/ref_max.`

// VisionCaller is the part of the vision client extraction depends on.
type VisionCaller interface {
	Describe(ctx context.Context, model, prompt, imagePath string) (string, error)
	IsConfigured() bool
}

// FromImage extracts measurements from a report photograph by calling
// vision-capable models in order until one returns a usable payload.
func FromImage(ctx context.Context, vision VisionCaller, models []string, imagePath string) Result {
	if vision == nil || !vision.IsConfigured() {
		return Result{Diagnostic: "Image extraction failed: no vision service credentials configured."}
	}

	var tried []string
	seen := map[string]bool{}
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		content, err := vision.Describe(ctx, model, visionPrompt, imagePath)
		if err != nil {
			log.Printf("vision model %s failed: %v", model, err)
			tried = append(tried, fmt.Sprintf("%s: %v", model, err))
			continue
		}

		payload := llm.ParseJSONResponse(content)
		if payload == nil {
			// Some models answer with plain text rows instead of JSON.
			if r := FromText(content); len(r.Measurements) > 0 {
				log.Printf("vision model %s answered with text rows", model)
				return Result{Measurements: r.Measurements, Notes: r.Notes}
			}
			tried = append(tried, model+": response not parseable")
			continue
		}

		r := CoerceVision(payload)
		if len(r.Measurements) > 0 {
			log.Printf("vision extraction succeeded with %s (%d parameters)", model, len(r.Measurements))
			return r
		}
		tried = append(tried, model+": no numeric parameters")
	}

	if len(tried) > 4 {
		tried = tried[:4]
	}
	return Result{Diagnostic: "Image extraction failed after trying models. " + strings.Join(tried, " | ")}
}

// CoerceVision maps a vision-service JSON payload onto measurements and
// notes. Entries without both a name and a numeric value are dropped.
func CoerceVision(payload map[string]any) Result {
	var r Result

	params, _ := payload["parameters"].([]any)
	for _, item := range params {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(llm.CoerceString(obj["name"]))
		value, numeric := toFloat(obj["value"])
		if name == "" || !numeric {
			continue
		}
		m := database.Measurement{
			Name:  name,
			Value: value,
			Unit:  strings.TrimSpace(llm.CoerceString(obj["unit"])),
		}
		if lo, ok := toFloat(obj["ref_min"]); ok {
			m.RefMin = &lo
		}
		if hi, ok := toFloat(obj["ref_max"]); ok {
			m.RefMax = &hi
		}
		r.Measurements = append(r.Measurements, m)
	}

	suggestions, _ := payload["doctor_suggestions"].([]any)
	for _, item := range suggestions {
		note := strings.TrimSpace(llm.CoerceString(item))
		if note == "" {
			continue
		}
		r.Notes = append(r.Notes, note)
		if len(r.Notes) >= maxNotes {
			break
		}
	}

	return r
}

// imageExtensions recognized for vision routing.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".bmp"}

// IsImagePath reports whether a file name looks like a report photograph.
func IsImagePath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Extract runs the full extraction for a report: raw text when present,
// a vision pass for photographed reports, otherwise a diagnostic.
func Extract(ctx context.Context, report *database.Report, vision VisionCaller, models []string) Result {
	if report.RawText != nil && strings.TrimSpace(*report.RawText) != "" {
		return FromText(*report.RawText)
	}

	if report.SourceFile != nil && IsImagePath(*report.SourceFile) {
		return FromImage(ctx, vision, models, *report.SourceFile)
	}

	return Result{Diagnostic: DiagNoInput}
}
