package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/libris/internal/catalog"
	"github.com/lepinkainen/libris/internal/metadata"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// emit writes v in the selected output format. tableFn renders the table
// form and is only called for table output.
func (g *Globals) emit(v any, tableFn func() string) error {
	switch g.Output {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(g.out, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(g.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(g.out, tableFn())
		return err
	}
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

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
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, "; ")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = formatValue(p)
		}
		return strings.Join(parts, "; ")
	case int:
		return strconv.Itoa(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

func booksTable(books []*catalog.Book) string {
	rows := make([][]string, 0, len(books))
	for _, b := range books {
		rows = append(rows, []string{
			b.ID,
			b.Title,
			strings.Join(b.Authors, "; "),
			b.ISBN,
			string(b.MetadataStatus),
			strconv.Itoa(len(b.MetadataCandidate)),
		})
	}
	return renderTable(
		[]string{"ID", "Title", "Authors", "ISBN", "Status", "Staged"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func bookTable(b *catalog.Book) string {
	rows := [][]string{{"id", b.ID}}
	for _, f := range catalog.AllFields() {
		rows = append(rows, []string{string(f), formatValue(b.Value(f))})
	}
	rows = append(rows,
		[]string{"metadata_status", string(b.MetadataStatus)},
		[]string{"updated_at", b.UpdatedAt.Format("2006-01-02 15:04:05")},
	)
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func jobsTable(jobs []*catalog.Job) string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(j.ID, 10),
			j.BookID,
			j.Identifier,
			string(j.Status),
			strconv.Itoa(j.Attempts),
			j.LastError,
		})
	}
	return renderTable(
		[]string{"ID", "Book", "Identifier", "Status", "Attempts", "Last error"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func candidateTable(c catalog.Candidate) string {
	if c.Empty() {
		return "No staged suggestions."
	}
	rows := make([][]string, 0, len(c))
	for _, f := range c.Fields() {
		entry := c[f]
		rows = append(rows, []string{string(f), formatValue(entry.Current), formatValue(entry.Suggested)})
	}
	return renderTable([]string{"Field", "Current", "Suggested"}, rows, nil)
}

func metadataTable(md metadata.Metadata) string {
	rows := make([][]string, 0, len(md))
	for _, f := range md.Fields() {
		rows = append(rows, []string{string(f), formatValue(md.Get(f))})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func searchTable(results []metadata.SearchResult) string {
	if len(results) == 0 {
		return "No results."
	}
	rows := make([][]string, 0, len(results))
	for i, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Title,
			strings.Join(r.Authors, "; "),
			r.Date,
			r.Identifier,
			r.Source,
		})
	}
	return renderTable(
		[]string{"#", "Title", "Authors", "Date", "Identifier", "Source"},
		rows,
		[]columnAlignment{alignRight},
	)
}
