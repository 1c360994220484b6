// Package export writes a finished report to disk as CSV, JSON and
// Markdown files named after the run.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kjourdan1/azaudit/internal/audit"
	"github.com/kjourdan1/azaudit/internal/config"
	"github.com/kjourdan1/azaudit/internal/policy"
)

// File is one rendered export, relative to the export directory.
type File struct {
	Path    string
	Content []byte
}

// FindingsHeader is the column order of the findings CSV.
var FindingsHeader = []string{
	"account_id", "resource_id", "resource_name", "resource_type",
	"rule", "kind", "outcome", "missing", "detail",
}

// RemediationsHeader is the column order of the remediations CSV.
var RemediationsHeader = []string{
	"account_id", "resource_id", "tags_added", "succeeded", "skipped", "dry_run", "error_kind", "error",
}

// Render produces the export files for the requested formats. Unknown
// formats are an error. The CSV format yields a findings file and, when
// remediation ran, a remediations file.
func Render(report *audit.Report, formats []string) ([]File, error) {
	if report == nil {
		return nil, fmt.Errorf("report cannot be nil")
	}
	base := baseName(report)
	var files []File
	for _, format := range formats {
		switch format {
		case config.ExportFormatCSV:
			findings, err := FindingsCSV(report)
			if err != nil {
				return nil, err
			}
			files = append(files, File{Path: base + "-findings.csv", Content: findings})
			if len(report.Remediations) > 0 {
				rem, err := RemediationsCSV(report)
				if err != nil {
					return nil, err
				}
				files = append(files, File{Path: base + "-remediations.csv", Content: rem})
			}
		case config.ExportFormatJSON:
			payload, err := audit.RenderJSON(report)
			if err != nil {
				return nil, fmt.Errorf("rendering JSON report: %w", err)
			}
			files = append(files, File{Path: base + ".json", Content: payload})
		case config.ExportFormatMD:
			files = append(files, File{Path: base + ".md", Content: []byte(audit.RenderMarkdown(report))})
		default:
			return nil, fmt.Errorf("unknown export format %q", format)
		}
	}
	return files, nil
}

// FindingsCSV writes one row per non-compliant result followed by one row
// per result that could not be evaluated.
func FindingsCSV(report *audit.Report) ([]byte, error) {
	rows := make([][]string, 0, len(report.NonCompliant)+len(report.Unevaluated))
	for _, r := range report.NonCompliant {
		rows = append(rows, findingRow(r))
	}
	for _, r := range report.Unevaluated {
		rows = append(rows, findingRow(r))
	}
	return writeCSV(FindingsHeader, rows)
}

// RemediationsCSV writes one row per remediation record.
func RemediationsCSV(report *audit.Report) ([]byte, error) {
	rows := make([][]string, 0, len(report.Remediations))
	for _, rec := range report.Remediations {
		rows = append(rows, []string{
			rec.AccountID,
			rec.ResourceID,
			strings.Join(rec.TagsAdded, ";"),
			strconv.FormatBool(rec.Succeeded),
			strconv.FormatBool(rec.Skipped),
			strconv.FormatBool(rec.DryRun),
			string(rec.ErrorKind),
			rec.Error,
		})
	}
	return writeCSV(RemediationsHeader, rows)
}

func findingRow(r policy.Result) []string {
	return []string{
		r.AccountID,
		r.ResourceID,
		r.ResourceName,
		r.ResourceType,
		r.Rule,
		string(r.Kind),
		string(r.Outcome),
		strings.Join(r.Missing, ";"),
		r.Detail,
	}
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("writing CSV rows: %w", err)
	}
	return buf.Bytes(), nil
}

func baseName(report *audit.Report) string {
	stamp := report.StartedAt.UTC().Format("20060102T150405Z")
	id := report.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return "azaudit-" + stamp
	}
	return "azaudit-" + stamp + "-" + id
}

// Write renders the report and writes it under dir, creating the directory
// when needed. It returns the paths written.
func Write(report *audit.Report, dir string, formats []string) ([]string, error) {
	files, err := Render(report, formats)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		fullPath := filepath.Join(dir, f.Path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating export directory for %s: %w", fullPath, err)
		}
		if err := os.WriteFile(fullPath, f.Content, 0o644); err != nil {
			return nil, fmt.Errorf("writing export %s: %w", fullPath, err)
		}
		paths = append(paths, fullPath)
	}
	return paths, nil
}
