package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/xuri/excelize/v2"

	"github.com/albapepper/scoracle-canon/internal/pipeline"
)

// Options control which artifacts are written.
type Options struct {
	Workbook bool
}

// RunMetadata is written next to the artifacts so a directory can be traced
// back to the run that produced it.
type RunMetadata struct {
	RunID      string    `toml:"run_id"`
	StartedAt  time.Time `toml:"started_at"`
	DurationMS int64     `toml:"duration_ms"`
	Summary    string    `toml:"summary"`
	Snapshots  []string  `toml:"snapshots"`
	Files      []string  `toml:"files"`
}

// WriteRun writes every artifact of a run into dir and returns the paths
// written. Files are written to a temporary name and renamed into place.
func WriteRun(dir string, res *pipeline.Result, snapshots []string, opts Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	tables := Tables(res.Dataset)
	var written []string
	for _, t := range tables {
		path := filepath.Join(dir, t.File)
		if err := writeFileAtomic(path, func(w io.Writer) error { return WriteCSV(w, t) }); err != nil {
			return written, fmt.Errorf("write %s: %w", t.File, err)
		}
		written = append(written, path)
	}

	if opts.Workbook {
		path := filepath.Join(dir, WorkbookFile)
		if err := writeFileAtomic(path, func(w io.Writer) error { return WriteWorkbook(w, tables) }); err != nil {
			return written, fmt.Errorf("write %s: %w", WorkbookFile, err)
		}
		written = append(written, path)
	}

	meta := RunMetadata{
		RunID:      res.RunID.String(),
		StartedAt:  res.StartedAt,
		DurationMS: res.Stats.Duration.Milliseconds(),
		Summary:    res.Summary(),
		Snapshots:  snapshots,
	}
	for _, p := range written {
		meta.Files = append(meta.Files, filepath.Base(p))
	}
	path := filepath.Join(dir, RunMetadataFile)
	err := writeFileAtomic(path, func(w io.Writer) error {
		return toml.NewEncoder(w).Encode(meta)
	})
	if err != nil {
		return written, fmt.Errorf("write %s: %w", RunMetadataFile, err)
	}
	return append(written, path), nil
}

// WriteCSV writes a table with its header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteWorkbook writes one sheet per table.
func WriteWorkbook(w io.Writer, tables []Table) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Sheet); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(t.Sheet); err != nil {
			return fmt.Errorf("new sheet %s: %w", t.Sheet, err)
		}

		sw, err := f.NewStreamWriter(t.Sheet)
		if err != nil {
			return fmt.Errorf("stream %s: %w", t.Sheet, err)
		}
		if err := sw.SetRow("A1", cells(t.Header)); err != nil {
			return fmt.Errorf("sheet %s header: %w", t.Sheet, err)
		}
		for r, row := range t.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, cells(row)); err != nil {
				return fmt.Errorf("sheet %s row %d: %w", t.Sheet, r+2, err)
			}
		}
		if err := sw.Flush(); err != nil {
			return fmt.Errorf("flush %s: %w", t.Sheet, err)
		}
	}
	return f.Write(w)
}

func cells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

func writeFileAtomic(path string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
