package ops

import (
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/siftly/siftly/internal/config"
	"github.com/siftly/siftly/internal/errors"
	"github.com/siftly/siftly/internal/lead"
)

// exportPageSize is the number of leads read per store page while exporting.
const exportPageSize = 500

// CSVHeader is the first row of every export.
var CSVHeader = []string{
	"id", "phone_number", "status", "classification", "qual_score",
	"zip_code", "project_type", "timeline_budget", "turns",
	"created_at", "updated_at", "qualified_at",
}

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string // optional, default: ~/.siftly/exports/leads_export_<timestamp>.csv
	Status string // optional filter
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes leads to a CSV file.
func Export(ctx context.Context, store lead.Lister, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	status, err := ParseStatus(input.Status)
	if err != nil {
		return nil, err
	}

	// Determine export path
	exportPath := input.Path
	if exportPath == "" {
		exportPath, err = defaultExportPath(now)
		if err != nil {
			return nil, err
		}
	}

	// Validate ALL paths (both user-provided and default) for security
	if err := ValidatePath(exportPath, cfg); err != nil {
		return nil, err
	}

	// Ensure parent directory exists
	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	// Write to temp file first, then atomic rename to preserve existing file on failure
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	count, err := WriteCSV(ctx, file, store, lead.ListFilter{Status: status})
	if err != nil {
		return nil, err
	}

	// Ensure file is written
	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// Check if destination is a symlink (os.Rename would follow it)
	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// On Windows, os.Rename fails if the destination exists. The existing
	// file is kept rather than risking a non-atomic delete+rename.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows yet (choose a new path or delete the existing file)")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: now.Unix(),
	}, nil
}

// WriteCSV streams the leads matching filter to w, header first, and returns
// the number of data rows written. filter.Limit and filter.Offset are ignored.
func WriteCSV(ctx context.Context, w io.Writer, store lead.Lister, filter lead.ListFilter) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, errors.NewInternal(err)
	}

	count := 0
	for offset := 0; ; offset += exportPageSize {
		select {
		case <-ctx.Done():
			return count, errors.NewCancelled("export")
		default:
		}

		page, total, err := store.List(ctx, lead.ListFilter{Status: filter.Status, Limit: exportPageSize, Offset: offset})
		if err != nil {
			return count, err
		}
		for _, l := range page {
			if err := cw.Write(csvRecord(l)); err != nil {
				return count, errors.NewInternal(err)
			}
			count++
		}
		if len(page) == 0 || offset+len(page) >= total {
			break
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, errors.NewInternal(err)
	}
	return count, nil
}

func csvRecord(l *lead.Lead) []string {
	score := ""
	if l.QualScore != nil {
		score = strconv.Itoa(*l.QualScore)
	}
	return []string{
		l.ID,
		l.PhoneNumber,
		string(l.Status),
		string(l.Classification),
		score,
		lead.Deref(l.ZipCode),
		lead.Deref(l.ProjectType),
		lead.Deref(l.TimelineBudget),
		strconv.Itoa(len(l.Transcript)),
		formatUnix(l.CreatedAt),
		formatUnix(l.UpdatedAt),
		formatUnixPtr(l.QualifiedAt),
	}
}

func formatUnix(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func formatUnixPtr(sec *int64) string {
	if sec == nil {
		return ""
	}
	return formatUnix(*sec)
}

// defaultExportPath generates the default export path.
// Format: ~/.siftly/exports/leads_export_<timestamp>.csv
func defaultExportPath(now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("leads_export_%s.csv", now.Format("20060102_150405"))
	return filepath.Join(dir, filename), nil
}
