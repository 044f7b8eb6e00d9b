// Package guardrail validates pipeline input before generation and
// rewrites generated output afterwards. Unsafe verdicts never block a
// pass; they downgrade confidence and surface as caveats.
package guardrail

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"strings"

	"github.com/rohanverma/lablens/internal/database"
	"github.com/rohanverma/lablens/internal/extract"
)

// Input guardrail thresholds. These are tuned heuristics; changing them
// shifts the HIGH/MEDIUM/LOW confidence boundaries.
const (
	MinMeasurements   = 3
	MinImageBytes     = 20 * 1024
	MinImageDimension = 700

	minUnitRatio      = 0.30
	minReferenceRatio = 0.30
	minOCRConfidence  = 0.65
)

// CheckResult is one guardrail check outcome. Confidence is always in [0,1].
type CheckResult struct {
	Name       string         `json:"name"`
	Safe       bool           `json:"safe"`
	Reason     string         `json:"reason"`
	Confidence float64        `json:"confidence"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Verdict aggregates all input checks for one pass.
type Verdict struct {
	Safe       bool          `json:"safe"`
	Reason     string        `json:"reason"`
	Confidence float64       `json:"confidence"`
	Checks     []CheckResult `json:"checks"`
}

// ImageInfo describes an uploaded image file.
type ImageInfo struct {
	Bytes  int64
	Width  int
	Height int
}

// ImageInspector is an optional capability for introspecting uploads.
type ImageInspector interface {
	Inspect(path string) (ImageInfo, error)
}

// NopInspector reports every image as acceptable. Used when image
// introspection is disabled; the check degrades to safe rather than fail.
type NopInspector struct{}

func (NopInspector) Inspect(string) (ImageInfo, error) {
	return ImageInfo{Bytes: MinImageBytes, Width: MinImageDimension, Height: MinImageDimension}, nil
}

// FileInspector reads image dimensions from the file header.
type FileInspector struct{}

func (FileInspector) Inspect(path string) (ImageInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ImageInfo{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		// Unknown encoding (webp, bmp): keep the size check, skip dimensions.
		return ImageInfo{Bytes: info.Size(), Width: MinImageDimension, Height: MinImageDimension}, nil
	}
	return ImageInfo{Bytes: info.Size(), Width: cfg.Width, Height: cfg.Height}, nil
}

// InputGuard runs the pre-generation checks.
type InputGuard struct {
	inspector ImageInspector
}

// NewInputGuard creates an input guard. A nil inspector disables image
// introspection entirely (every image passes the quality check).
func NewInputGuard(inspector ImageInspector) *InputGuard {
	if inspector == nil {
		inspector = NopInspector{}
	}
	return &InputGuard{inspector: inspector}
}

// Check runs all input checks against a report and its extraction.
// Overall: safe is the AND of the checks, confidence their mean, reason
// the pipe-joined non-empty reasons.
func (g *InputGuard) Check(report *database.Report, measurements []database.Measurement) Verdict {
	checks := []CheckResult{
		g.checkImageQuality(report),
		checkDataCompleteness(measurements),
		checkExtractionConfidence(measurements),
	}

	safe := true
	var reasons []string
	var total float64
	for _, c := range checks {
		safe = safe && c.Safe
		if c.Reason != "" {
			reasons = append(reasons, c.Reason)
		}
		total += c.Confidence
	}

	return Verdict{
		Safe:       safe,
		Reason:     strings.Join(reasons, " | "),
		Confidence: round2(total / float64(len(checks))),
		Checks:     checks,
	}
}

func (g *InputGuard) checkImageQuality(report *database.Report) CheckResult {
	if report.SourceFile == nil {
		return CheckResult{Name: "image_quality", Safe: true, Confidence: 1.0,
			Meta: map[string]any{"mode": "text"}}
	}
	if !extract.IsImagePath(*report.SourceFile) {
		return CheckResult{Name: "image_quality", Safe: true, Confidence: 1.0,
			Meta: map[string]any{"mode": "non-image-upload"}}
	}

	info, err := g.inspector.Inspect(*report.SourceFile)
	if err != nil {
		return CheckResult{
			Name:       "image_quality",
			Safe:       false,
			Reason:     "Image file could not be read.",
			Confidence: 0.0,
			Meta:       map[string]any{"mode": "image"},
		}
	}

	shortest := info.Width
	if info.Height < shortest {
		shortest = info.Height
	}
	safe := info.Bytes >= MinImageBytes && shortest >= MinImageDimension

	result := CheckResult{
		Name:       "image_quality",
		Safe:       safe,
		Confidence: 1.0,
		Meta: map[string]any{
			"mode": "image", "file_size": info.Bytes,
			"width": info.Width, "height": info.Height,
		},
	}
	if !safe {
		result.Reason = "Please upload a clearer report image with better resolution."
		result.Confidence = 0.2
	}
	return result
}

// checkDataCompleteness requires a minimum measurement count plus enough
// units and reference ranges to anchor the explanation.
func checkDataCompleteness(measurements []database.Measurement) CheckResult {
	count := len(measurements)
	units := 0
	refs := 0
	for _, m := range measurements {
		if strings.TrimSpace(m.Unit) != "" {
			units++
		}
		if m.RefMin != nil && m.RefMax != nil {
			refs++
		}
	}

	var unitRatio, refRatio, confidence float64
	if count > 0 {
		unitRatio = float64(units) / float64(count)
		refRatio = float64(refs) / float64(count)
		confidence = math.Min(1.0, (unitRatio+refRatio)/2.0)
	}

	safe := count >= MinMeasurements && unitRatio >= minUnitRatio && refRatio >= minReferenceRatio
	result := CheckResult{
		Name:       "data_completeness",
		Safe:       safe,
		Confidence: round2(confidence),
		Meta: map[string]any{
			"measurement_count": count,
			"unit_ratio":        round2(unitRatio),
			"reference_ratio":   round2(refRatio),
		},
	}
	if !safe {
		result.Reason = "Report data is incomplete. Add clearer values, units, and reference ranges."
	}
	return result
}

// checkExtractionConfidence estimates how trustworthy the extraction is:
// 0.7 weight on numeric values, 0.3 on named entries.
func checkExtractionConfidence(measurements []database.Measurement) CheckResult {
	count := len(measurements)
	if count == 0 {
		return CheckResult{
			Name:       "extraction_confidence",
			Safe:       false,
			Reason:     "Extraction confidence is too low to proceed.",
			Confidence: 0.0,
			Meta:       map[string]any{"estimated_confidence": 0.0},
		}
	}

	named := 0
	for _, m := range measurements {
		if strings.TrimSpace(m.Name) != "" {
			named++
		}
	}
	// Every persisted measurement carries a numeric value by construction.
	numericRatio := 1.0
	namedRatio := float64(named) / float64(count)

	confidence := round2(numericRatio*0.7 + namedRatio*0.3)
	safe := confidence >= minOCRConfidence
	result := CheckResult{
		Name:       "extraction_confidence",
		Safe:       safe,
		Confidence: confidence,
		Meta:       map[string]any{"estimated_confidence": confidence},
	}
	if !safe {
		result.Reason = "Extraction confidence is below threshold. Please upload a clearer image."
	}
	return result
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
