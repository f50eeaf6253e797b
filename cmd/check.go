package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"botherd/internal/config"
	"botherd/internal/daemon"
	"botherd/internal/settings"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	checkOutputFormat string
	checkQuiet        bool
	checkStrict       bool
	checkConfigPath   string
	checkSettingsPath string
)

// checkCmd parses the settings document without starting anything.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the settings document without starting any instance",
	Long: `Parses the settings document the same way 'botherd serve' does and
reports the instances it would run.

For every instance the report shows the alias, the resolved settings file and
whether that file exists. Malformed entries are listed separately; they are
skipped by 'serve' as well. Nothing is started and no files are written.

Examples:
  botherd check
  botherd check --settings ./herd/settings.json
  botherd check -o yaml
  botherd check --strict   # non-zero exit on any problem`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkOutputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	checkCmd.Flags().BoolVarP(&checkQuiet, "quiet", "q", false, "Suppress non-essential output")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Fail when an entry is malformed or a settings file is missing")
	checkCmd.Flags().StringVar(&checkConfigPath, "config-path", "", "Directory containing botherd.yaml (default: executable directory)")
	checkCmd.Flags().StringVar(&checkSettingsPath, "settings", "", "Settings document to check (overrides botherd.yaml)")
}

// instanceReport is one row of the check output.
type instanceReport struct {
	Alias    string `json:"alias" yaml:"alias"`
	Settings string `json:"settings" yaml:"settings"`
	Exists   bool   `json:"exists" yaml:"exists"`
}

// checkReport is the full check result.
type checkReport struct {
	Document  string           `json:"document" yaml:"document"`
	Kind      string           `json:"kind" yaml:"kind"`
	Daemon    string           `json:"daemon" yaml:"daemon"`
	Messenger bool             `json:"messenger" yaml:"messenger"`
	Instances []instanceReport `json:"instances" yaml:"instances"`
	Malformed []string         `json:"malformed,omitempty" yaml:"malformed,omitempty"`
}

// problems counts what --strict fails on.
func (r checkReport) problems() int {
	n := len(r.Malformed)
	for _, inst := range r.Instances {
		if !inst.Exists {
			n++
		}
	}
	return n
}

func runCheck(cmd *cobra.Command, args []string) error {
	switch checkOutputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format '%s'. Available formats: table, json, yaml", checkOutputFormat)
	}

	var s *spinner.Spinner
	if !checkQuiet && checkOutputFormat == "table" {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = " Checking settings..."
		s.Start()
	}

	report, err := buildCheckReport(checkConfigPath, checkSettingsPath)

	if s != nil {
		s.Stop()
	}
	if err != nil {
		if !checkQuiet {
			fmt.Fprintln(cmd.ErrOrStderr(), text.FgRed.Sprint("Settings check failed"))
		}
		return err
	}

	out := cmd.OutOrStdout()
	switch checkOutputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	case "yaml":
		data, err := yaml.Marshal(report)
		if err != nil {
			return err
		}
		if _, err := out.Write(data); err != nil {
			return err
		}
	default:
		renderCheckReport(out, report, checkQuiet)
	}

	if checkStrict && report.problems() > 0 {
		return fmt.Errorf("settings check found %d problem(s)", report.problems())
	}
	return nil
}

// buildCheckReport loads the process configuration and the settings
// document it points at.
func buildCheckReport(configPath, settingsPath string) (checkReport, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return checkReport{}, fmt.Errorf("failed to load botherd configuration: %w", err)
	}
	if settingsPath != "" {
		cfg.Settings = settingsPath
	}

	doc, err := settings.Load(cfg.Settings)
	if err != nil {
		return checkReport{}, err
	}

	report := checkReport{
		Document:  doc.Path,
		Kind:      doc.Kind.String(),
		Messenger: doc.Messenger.Active,
		Instances: []instanceReport{},
	}

	if path, err := daemon.Resolve(cfg.Daemon.Path, config.DefaultDaemonName, config.ExecutableDir()); err != nil {
		report.Daemon = "not found"
	} else {
		report.Daemon = path
	}

	for _, target := range doc.Targets() {
		_, statErr := os.Stat(target.Identity.Path())
		report.Instances = append(report.Instances, instanceReport{
			Alias:    target.Alias,
			Settings: target.Identity.Path(),
			Exists:   statErr == nil,
		})
	}

	if doc.Malformed != nil {
		for _, e := range doc.Malformed.Errors {
			report.Malformed = append(report.Malformed, e.Error())
		}
	}
	return report, nil
}

func renderCheckReport(out io.Writer, report checkReport, quiet bool) {
	if !quiet {
		fmt.Fprintf(out, "Document:  %s (%s)\n", report.Document, report.Kind)
		fmt.Fprintf(out, "Daemon:    %s\n", report.Daemon)
		messenger := text.FgHiBlack.Sprint("inactive")
		if report.Messenger {
			messenger = text.FgGreen.Sprint("active")
		}
		fmt.Fprintf(out, "Messenger: %s\n\n", messenger)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Alias", "Settings", "Status"})
	for _, inst := range report.Instances {
		status := text.FgGreen.Sprint("ok")
		if !inst.Exists {
			status = text.FgRed.Sprint("missing")
		}
		t.AppendRow(table.Row{inst.Alias, relativeToDocument(report.Document, inst.Settings), status})
	}
	t.AppendFooter(table.Row{"", "Instances", len(report.Instances)})
	t.Render()

	if len(report.Malformed) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, text.FgYellow.Sprintf("%d entry(ies) skipped:", len(report.Malformed)))
		for _, m := range report.Malformed {
			fmt.Fprintf(out, "  - %s\n", m)
		}
	}
}

// relativeToDocument shortens paths below the document directory.
func relativeToDocument(document, path string) string {
	rel, err := filepath.Rel(filepath.Dir(document), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
