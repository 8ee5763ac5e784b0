// Package export renders record collections as marketplace upload feeds and
// internal logs in quoted CSV or tab-separated text.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
)

// Format selects the delimiter and file extension of an export.
type Format string

const (
	// FormatCSV separates cells with commas and quotes every data cell.
	FormatCSV Format = "csv"
	// FormatTXT separates cells with tabs and never quotes.
	FormatTXT Format = "txt"
)

// ParseFormat validates a format taken from a request.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatTXT:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("export: unknown format %q", raw)
	}
}

// ContentType returns the MIME type for downloads.
func (f Format) ContentType() string {
	if f == FormatTXT {
		return "text/plain; charset=utf-8"
	}
	return "text/csv; charset=utf-8"
}

// Table is a header plus rows, ready to be written.
type Table struct {
	Kind   string
	Header []string
	Rows   [][]string
}

// Filename names the artifact {kind}_{YYYY-MM-DD}.{ext} using the UTC date.
func Filename(kind string, f Format, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", kind, now.UTC().Format("2006-01-02"), f)
}

const bufferSize = 32 * 1024

// Write emits the header row followed by every data row. In CSV the header
// is joined as-is and each data cell is wrapped in double quotes.
func Write(w io.Writer, t Table, f Format) error {
	buf := bufio.NewWriterSize(w, bufferSize)
	sep := ","
	if f == FormatTXT {
		sep = "\t"
	}
	if _, err := buf.WriteString(strings.Join(t.Header, sep) + "\n"); err != nil {
		return err
	}
	cells := make([]string, 0, len(t.Header))
	for _, row := range t.Rows {
		cells = cells[:0]
		for _, cell := range row {
			if f == FormatCSV {
				cell = quote(cell)
			}
			cells = append(cells, cell)
		}
		if _, err := buf.WriteString(strings.Join(cells, sep) + "\n"); err != nil {
			return err
		}
	}
	return buf.Flush()
}

// Render returns the table as a string.
func Render(t Table, f Format) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, t, f); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func quote(cell string) string {
	return `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
}
