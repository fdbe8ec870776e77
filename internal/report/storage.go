package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteJSON serializes the document for external renderers.
func (d *Document) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// SaveTo persists the document under dir as <report-id>/<report-id>.json and
// returns the written path. The per-report directory leaves room for
// renderer outputs (a templated PDF) next to the JSON.
func (d *Document) SaveTo(dir string) (string, error) {
	reportDir := filepath.Join(dir, d.ReportID)
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(reportDir, d.ReportID+".json")
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := d.WriteJSON(file); err != nil {
		return "", err
	}

	return path, nil
}

// DumpToTmpFile writes the document to a temporary JSON file and returns its
// name.
func (d *Document) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "rfp_analysis_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := d.WriteJSON(file); err != nil {
		return "", err
	}

	return file.Name(), nil
}

// CleanOld removes report directories older than maxAge and returns how many
// were removed.
func CleanOld(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				return removed, err
			}
			removed++
		}
	}

	return removed, nil
}
