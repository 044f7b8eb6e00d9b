package database

// Report represents one uploaded medical report.
type Report struct {
	ID               string
	Owner            string
	CapturedDate     string
	RawText          *string
	Notes            []string
	SourceFile       *string
	AnalysisComplete bool
	CreatedAt        *string
}

// Measurement is a single named lab value extracted from a report.
// RefMin/RefMax are nil when the report carried no reference range.
type Measurement struct {
	ID       int64    `json:"-"`
	ReportID string   `json:"-"`
	Name     string   `json:"name"`
	Value    float64  `json:"value"`
	Unit     string   `json:"unit,omitempty"`
	RefMin   *float64 `json:"ref_min"`
	RefMax   *float64 `json:"ref_max"`
	Risk     string   `json:"risk"`
}

// Analysis holds the generated explanation for a report. At most one
// exists per report; it is replaced wholesale on re-processing.
type Analysis struct {
	ReportID         string
	Narrative        string
	Summary          string
	TrendText        string
	ClinicianSummary string
	RawPayload       map[string]any
	GuardrailMeta    map[string]any
	GeneratedAt      *string
}

// Profile is the stored snapshot of user attributes fed into generation.
// All fields are optional; empty profiles are valid.
type Profile struct {
	UserID        string
	Age           *int
	Gender        string
	City          string
	LocationType  string
	Occupation    string
	Conditions    string
	Symptoms      string
	Medications   string
	HealthGoal    string
	Language      string
	Smoking       string
	Alcohol       string
	SleepHours    *float64
	ActivityLevel string
	DietType      string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalReports    int
	AnalyzedReports int
	Measurements    int
	Profiles        int
	Owners          int
}
