package main

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/albapepper/scoracle-canon/internal/export"
	"github.com/albapepper/scoracle-canon/internal/pipeline"
	"github.com/albapepper/scoracle-canon/internal/source"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(title string, headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderSummary shows the counts of a finished run and the files it wrote.
func renderSummary(res *pipeline.Result, written []string) string {
	s := res.Stats
	rows := [][]string{
		{"snapshots", strconv.Itoa(s.Snapshots)},
		{"source rows", strconv.Itoa(s.Rows)},
		{"resolved by reference", strconv.Itoa(s.ByReference)},
		{"resolved by name match", strconv.Itoa(s.ByNameMatch)},
		{"synthetic ids", strconv.Itoa(s.Synthetic)},
		{"unresolved rows", strconv.Itoa(s.Unresolved)},
		{"canonical records", strconv.Itoa(s.Records)},
		{"career stints", strconv.Itoa(s.Stints)},
		{"values divided", strconv.Itoa(s.Divided)},
		{"parse failures", strconv.Itoa(len(res.Dataset.Failures))},
		{"audit entries", strconv.Itoa(len(res.Dataset.Corrections))},
		{"review items", strconv.Itoa(len(res.Dataset.Review))},
		{"duration", s.Duration.Round(time.Millisecond).String()},
	}
	out := renderTable("Run "+res.RunID.String(), []string{"Metric", "Value"}, rows,
		[]columnAlignment{alignLeft, alignRight})

	if len(written) == 0 {
		return out
	}
	files := make([][]string, len(written))
	for i, p := range written {
		files[i] = []string{filepath.Base(p), filepath.Dir(p)}
	}
	return out + "\n" + renderTable("", []string{"Artifact", "Directory"}, files, nil)
}

// renderManifest lists the manifest's snapshots in pass order.
func renderManifest(m *source.Manifest) string {
	rows := make([][]string, len(m.Snapshots))
	for i, s := range m.Snapshots {
		manual := ""
		if s.Manual {
			manual = "yes"
		}
		rows[i] = []string{strconv.Itoa(i), s.Name, s.Kind, manual, s.Path}
	}
	return renderTable("Manifest", []string{"Pass", "Name", "Kind", "Manual", "Path"}, rows,
		[]columnAlignment{alignRight})
}

// renderRunMetadata shows a run.toml file.
func renderRunMetadata(meta export.RunMetadata) string {
	rows := [][]string{
		{"run id", meta.RunID},
		{"started", meta.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"duration ms", strconv.FormatInt(meta.DurationMS, 10)},
		{"snapshots", strings.Join(meta.Snapshots, ", ")},
		{"files", strings.Join(meta.Files, ", ")},
	}
	for _, kv := range strings.Fields(meta.Summary) {
		if k, v, ok := strings.Cut(kv, "="); ok {
			rows = append(rows, []string{strings.ReplaceAll(k, "_", " "), v})
		}
	}
	return renderTable("Last run", []string{"Field", "Value"}, rows, nil)
}
