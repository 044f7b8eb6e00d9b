// Package server serves the report dashboard: upload, report pages with
// measurements and analysis, and the profile form.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/rohanverma/lablens/internal/database"
	"github.com/rohanverma/lablens/internal/ingest"
	"github.com/rohanverma/lablens/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for the report dashboard.
type Server struct {
	db    *database.DB
	ing   *ingest.Ingester
	pipe  *pipeline.Pipeline
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB, pipe *pipeline.Pipeline) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"derefFloat": func(f *float64) string {
			if f == nil {
				return "—"
			}
			return strconv.FormatFloat(*f, 'f', -1, 64)
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "report.html", "profile.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		db:    db,
		ing:   ingest.New(db),
		pipe:  pipe,
		pages: pages,
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/report/", s.handleReport)
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/profile", s.handleProfile)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	reports, err := s.db.GetAllReports()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Reports": reports,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	reportID := strings.TrimPrefix(r.URL.Path, "/report/")
	if reportID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	report, err := s.db.GetReport(reportID)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.NotFound(w, r)
		return
	}

	measurements, _ := s.db.GetMeasurementsForReport(reportID)
	analysis, _ := s.db.GetAnalysis(reportID)

	var confidence string
	if analysis != nil {
		confidence, _ = analysis.GuardrailMeta["confidence"].(string)
	}

	s.render(w, "report.html", map[string]any{
		"Report":       report,
		"Measurements": measurements,
		"Analysis":     analysis,
		"Confidence":   confidence,
	})
}

// handleUpload ingests pasted report text and runs the analysis pass
// before redirecting to the report page.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	owner := strings.TrimSpace(r.FormValue("owner"))
	capturedDate := strings.TrimSpace(r.FormValue("captured_date"))
	text := strings.TrimSpace(r.FormValue("text"))

	report, err := s.ing.NewReport(owner, capturedDate, text, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := s.pipe.Process(r.Context(), report.ID); err != nil {
		log.Printf("processing report %s: %v", report.ID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/report/"+report.ID, http.StatusFound)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.saveProfile(w, r)
		return
	}

	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	var profile *database.Profile
	if owner != "" {
		profile, _ = s.db.GetProfile(owner)
	}
	if profile == nil {
		profile = &database.Profile{UserID: owner}
	}

	s.render(w, "profile.html", map[string]any{
		"Profile": profile,
	})
}

func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.FormValue("owner"))
	if owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return
	}

	profile := &database.Profile{
		UserID:        owner,
		Gender:        strings.TrimSpace(r.FormValue("gender")),
		City:          strings.TrimSpace(r.FormValue("city")),
		LocationType:  strings.TrimSpace(r.FormValue("location_type")),
		Occupation:    strings.TrimSpace(r.FormValue("occupation")),
		Conditions:    strings.TrimSpace(r.FormValue("conditions")),
		Symptoms:      strings.TrimSpace(r.FormValue("symptoms")),
		Medications:   strings.TrimSpace(r.FormValue("medications")),
		HealthGoal:    strings.TrimSpace(r.FormValue("health_goal")),
		Language:      strings.TrimSpace(r.FormValue("language")),
		Smoking:       strings.TrimSpace(r.FormValue("smoking")),
		Alcohol:       strings.TrimSpace(r.FormValue("alcohol")),
		ActivityLevel: strings.TrimSpace(r.FormValue("activity_level")),
		DietType:      strings.TrimSpace(r.FormValue("diet_type")),
	}
	if age, err := strconv.Atoi(r.FormValue("age")); err == nil {
		profile.Age = &age
	}
	if sleep, err := strconv.ParseFloat(r.FormValue("sleep_hours"), 64); err == nil {
		profile.SleepHours = &sleep
	}

	if err := s.db.UpsertProfile(profile); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/profile?owner="+owner, http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, pipe *pipeline.Pipeline, port int) error {
	srv, err := New(db, pipe)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
