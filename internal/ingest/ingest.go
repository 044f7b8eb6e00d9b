// Package ingest creates report records from pasted text or uploaded
// files. Pasted text wins over files; HTML exports are reduced to plain
// text; images are left for the vision extraction pass.
package ingest

import (
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/oklog/ulid/v2"

	"github.com/rohanverma/lablens/internal/database"
	"github.com/rohanverma/lablens/internal/extract"
)

// maxRawText caps how much derived text is stored per report.
const maxRawText = 10000

// Ingester creates report records.
type Ingester struct {
	db      *database.DB
	entropy *rand.Rand
}

// New creates an ingester backed by the given store.
func New(db *database.DB) *Ingester {
	return &Ingester{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (i *Ingester) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), i.entropy).String()
}

// NewReport creates a report for an owner from pasted text and/or an
// uploaded file path. File-handling problems are recorded as diagnostic
// raw text rather than returned as errors; only store failures fail.
func (i *Ingester) NewReport(owner, capturedDate, pastedText, filePath string) (*database.Report, error) {
	if owner == "" {
		return nil, fmt.Errorf("report owner is required")
	}
	if capturedDate == "" {
		capturedDate = time.Now().Format("2006-01-02")
	}

	id := i.newID()
	rawText := deriveRawText(pastedText, filePath)

	var sourceFile *string
	if filePath != "" {
		sourceFile = &filePath
	}

	if err := i.db.InsertReport(id, owner, capturedDate, rawText, sourceFile); err != nil {
		return nil, fmt.Errorf("inserting report: %w", err)
	}

	report, err := i.db.GetReport(id)
	if err != nil {
		return nil, err
	}
	log.Printf("ingested report %s for %s (%s)", id, owner, capturedDate)
	return report, nil
}

// deriveRawText picks the report text: pasted text first, then readable
// file contents. Image files yield no text here; the extractor routes
// them through the vision service instead.
func deriveRawText(pastedText, filePath string) *string {
	if text := strings.TrimSpace(pastedText); text != "" {
		return capped(text)
	}
	if filePath == "" {
		return nil
	}
	if extract.IsImagePath(filePath) {
		return nil
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".txt":
		data, err := os.ReadFile(filePath)
		if err != nil {
			log.Printf("reading %s: %v", filePath, err)
			diag := "Uploaded file could not be read. Try again or paste report text."
			return &diag
		}
		return capped(string(data))
	case ".html", ".htm":
		text, err := htmlToText(filePath)
		if err != nil {
			log.Printf("extracting text from %s: %v", filePath, err)
			diag := "Uploaded HTML could not be parsed. Export the report as text or paste it directly."
			return &diag
		}
		return capped(text)
	default:
		diag := "Unsupported file type. Upload a .txt, .html, or image file, or paste report text."
		return &diag
	}
}

// htmlToText runs readability extraction over an HTML report export.
func htmlToText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	// readability wants a page URL for resolving links; a local file
	// placeholder is enough.
	pageURL, _ := url.Parse("file://" + filepath.ToSlash(path))
	article, err := readability.FromReader(f, pageURL)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no readable text in %s", path)
	}
	return text, nil
}

func capped(text string) *string {
	if len(text) > maxRawText {
		text = text[:maxRawText]
	}
	return &text
}
