package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rohanverma/lablens/internal/config"
	"github.com/rohanverma/lablens/internal/database"
	"github.com/rohanverma/lablens/internal/ingest"
	"github.com/rohanverma/lablens/internal/pipeline"
	"github.com/rohanverma/lablens/internal/server"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "lablens",
	Short:   "Plain-language lab report analysis",
	Long:    "LabLens extracts lab measurements from medical reports, classifies them against reference ranges, and generates guarded plain-language explanations with longitudinal trends.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("lablens", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/lablens/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the explanation provider and API keys.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Reports:")
		fmt.Printf("  Total: %d\n", stats.TotalReports)
		fmt.Printf("  Analyzed: %d\n", stats.AnalyzedReports)
		fmt.Printf("  Measurements: %d\n", stats.Measurements)
		fmt.Println("\nUsers:")
		fmt.Printf("  Owners: %d\n", stats.Owners)
		fmt.Printf("  Profiles: %d\n", stats.Profiles)
		return nil
	},
}

// --- add command ---

var (
	addOwner string
	addDate  string
	addText  string
	addFile  string
	noRun    bool
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a report from pasted text or a file and analyze it",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		text := addText
		if text == "-" {
			data, err := readStdin()
			if err != nil {
				return err
			}
			text = data
		}

		report, err := ingest.New(db).NewReport(addOwner, addDate, text, addFile)
		if err != nil {
			return err
		}
		fmt.Printf("Added report %s for %s (%s)\n", report.ID, report.Owner, report.CapturedDate)

		if noRun {
			fmt.Printf("Run 'lablens process %s' to analyze it.\n", report.ID)
			return nil
		}
		return runPipeline(db, report.ID)
	},
}

func init() {
	addCmd.Flags().StringVarP(&addOwner, "owner", "o", "", "Report owner (required)")
	addCmd.Flags().StringVarP(&addDate, "date", "d", "", "Report capture date (YYYY-MM-DD, default today)")
	addCmd.Flags().StringVarP(&addText, "text", "t", "", "Pasted report text ('-' reads stdin)")
	addCmd.Flags().StringVarP(&addFile, "file", "f", "", "Report file (.txt, .html, or image)")
	addCmd.Flags().BoolVar(&noRun, "no-run", false, "Only store the report, skip analysis")
	addCmd.MarkFlagRequired("owner")
}

// --- process command ---

var processCmd = &cobra.Command{
	Use:   "process [report-id]",
	Short: "Run the analysis pass: extract -> classify -> assemble -> guard -> generate -> persist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		return runPipeline(db, args[0])
	},
}

func runPipeline(db *database.DB, reportID string) error {
	pipe := pipeline.New(cfg, db)
	result, err := pipe.Process(context.Background(), reportID)
	if err != nil {
		return err
	}

	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
		fmt.Printf("  %s\n", step.Summary)
	}

	fmt.Printf("\nAnalysis complete (confidence %s). Run 'lablens show %s' to view it.\n",
		result.Confidence, reportID)
	return nil
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show [report-id]",
	Short: "Show a report's measurements and analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		report, err := db.GetReport(args[0])
		if err != nil {
			return err
		}
		if report == nil {
			return fmt.Errorf("report %s not found", args[0])
		}

		fmt.Printf("Report %s\n", report.ID)
		fmt.Printf("  Owner: %s\n", report.Owner)
		fmt.Printf("  Date:  %s\n", report.CapturedDate)

		measurements, err := db.GetMeasurementsForReport(report.ID)
		if err != nil {
			return err
		}
		if len(measurements) > 0 {
			fmt.Println("\nMeasurements:")
			for _, m := range measurements {
				ref := ""
				if m.RefMin != nil && m.RefMax != nil {
					ref = fmt.Sprintf(" (ref %g-%g)", *m.RefMin, *m.RefMax)
				}
				fmt.Printf("  %-24s %g %s%s [%s]\n", m.Name, m.Value, m.Unit, ref, m.Risk)
			}
		} else if report.RawText != nil {
			fmt.Println("\nNo measurements extracted.")
			fmt.Printf("  %s\n", *report.RawText)
		}

		analysis, err := db.GetAnalysis(report.ID)
		if err != nil {
			return err
		}
		if analysis == nil {
			fmt.Printf("\nNot analyzed yet. Run 'lablens process %s'.\n", report.ID)
			return nil
		}

		if label, ok := analysis.GuardrailMeta["confidence"].(string); ok {
			fmt.Printf("\nConfidence: %s\n", label)
		}
		fmt.Printf("\nExplanation:\n%s\n", indent(analysis.Narrative))
		fmt.Printf("\nSummary:\n%s\n", indent(analysis.Summary))
		fmt.Printf("\nTrends:\n%s\n", indent(analysis.TrendText))
		fmt.Printf("\nFor your doctor:\n%s\n", indent(analysis.ClinicianSummary))
		return nil
	},
}

// --- profile command ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show [owner]",
	Short: "Show a user's profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		profile, err := db.GetProfile(args[0])
		if err != nil {
			return err
		}
		if profile == nil {
			fmt.Printf("No profile for %s. Set one with: lablens profile set %s --symptoms ...\n", args[0], args[0])
			return nil
		}

		fmt.Printf("Profile for %s:\n", profile.UserID)
		if profile.Age != nil {
			fmt.Printf("  Age: %d\n", *profile.Age)
		}
		printIfSet("Gender", profile.Gender)
		printIfSet("City", profile.City)
		printIfSet("Location type", profile.LocationType)
		printIfSet("Occupation", profile.Occupation)
		printIfSet("Conditions", profile.Conditions)
		printIfSet("Symptoms", profile.Symptoms)
		printIfSet("Medications", profile.Medications)
		printIfSet("Health goal", profile.HealthGoal)
		printIfSet("Language", profile.Language)
		printIfSet("Smoking", profile.Smoking)
		printIfSet("Alcohol", profile.Alcohol)
		if profile.SleepHours != nil {
			fmt.Printf("  Sleep hours: %g\n", *profile.SleepHours)
		}
		printIfSet("Activity level", profile.ActivityLevel)
		printIfSet("Diet type", profile.DietType)
		return nil
	},
}

var profileFlags = map[string]*string{}

var profileSetCmd = &cobra.Command{
	Use:   "set [owner]",
	Short: "Set profile fields for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		owner := args[0]
		profile, err := db.GetProfile(owner)
		if err != nil {
			return err
		}
		if profile == nil {
			profile = &database.Profile{UserID: owner}
		}

		apply := func(flag string, target *string) {
			if cmd.Flags().Changed(flag) {
				*target = *profileFlags[flag]
			}
		}
		apply("gender", &profile.Gender)
		apply("city", &profile.City)
		apply("location-type", &profile.LocationType)
		apply("occupation", &profile.Occupation)
		apply("conditions", &profile.Conditions)
		apply("symptoms", &profile.Symptoms)
		apply("medications", &profile.Medications)
		apply("health-goal", &profile.HealthGoal)
		apply("language", &profile.Language)
		apply("smoking", &profile.Smoking)
		apply("alcohol", &profile.Alcohol)
		apply("activity-level", &profile.ActivityLevel)
		apply("diet-type", &profile.DietType)

		if cmd.Flags().Changed("age") {
			age, err := strconv.Atoi(*profileFlags["age"])
			if err != nil {
				return fmt.Errorf("invalid age: %s", *profileFlags["age"])
			}
			profile.Age = &age
		}
		if cmd.Flags().Changed("sleep-hours") {
			sleep, err := strconv.ParseFloat(*profileFlags["sleep-hours"], 64)
			if err != nil {
				return fmt.Errorf("invalid sleep hours: %s", *profileFlags["sleep-hours"])
			}
			profile.SleepHours = &sleep
		}

		if err := db.UpsertProfile(profile); err != nil {
			return err
		}
		fmt.Printf("Profile saved for %s.\n", owner)
		return nil
	},
}

func init() {
	for _, name := range []string{
		"age", "gender", "city", "location-type", "occupation", "conditions",
		"symptoms", "medications", "health-goal", "language", "smoking",
		"alcohol", "sleep-hours", "activity-level", "diet-type",
	} {
		profileFlags[name] = profileSetCmd.Flags().String(name, "", "Profile field: "+name)
	}

	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if !cmd.Flags().Changed("port") && cfg.Server.Port != 0 {
			port = cfg.Server.Port
		}

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, pipeline.New(cfg, db), port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "lablens.db")
	return database.Open(dbPath)
}

func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func printIfSet(label, value string) {
	if strings.TrimSpace(value) != "" {
		fmt.Printf("  %s: %s\n", label, value)
	}
}

func indent(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
