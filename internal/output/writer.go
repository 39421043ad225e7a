// Package output implements OutputWriter (spec.md §4.G, §6): the sink
// reports are serialized to, in one of three selectable formats.
package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/skywalker-88/nightwatch/internal/report"
)

// Format selects the wire shape reports are written in.
type Format string

const (
	// FormatLineJSON writes one compact JSON object per line.
	FormatLineJSON Format = "line-json"
	// FormatPrettyJSON writes one indented JSON block per report, with a
	// trailing newline.
	FormatPrettyJSON Format = "pretty-json"
	// FormatConsole writes the human-readable console form (spec.md §6).
	FormatConsole Format = "console"
)

// Writer serializes reports to an underlying io.Writer. It is safe for
// concurrent use; the dispatcher is its only caller on the hot path, but
// the admin HTTP surface may also want to write diagnostic reports.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	format Format
}

// NewWriter builds a Writer. An unrecognized format falls back to
// FormatLineJSON.
func NewWriter(out io.Writer, format Format) *Writer {
	switch format {
	case FormatLineJSON, FormatPrettyJSON, FormatConsole:
	default:
		format = FormatLineJSON
	}
	return &Writer{out: out, format: format}
}

// Write serializes r in the writer's configured format. A failed write is
// surfaced to the caller (the dispatcher logs it and continues per
// spec.md §7); the next report still gets a fresh attempt.
func (w *Writer) Write(r report.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b []byte
	var err error
	switch w.format {
	case FormatPrettyJSON:
		b, err = json.MarshalIndent(r, "", "  ")
		if err == nil {
			b = append(b, '\n')
		}
	case FormatConsole:
		b = []byte(consoleLine(r))
	default:
		b, err = r.MarshalJSONLine()
	}
	if err != nil {
		return fmt.Errorf("output: encode report: %w", err)
	}
	if _, err := w.out.Write(b); err != nil {
		return fmt.Errorf("output: write report: %w", err)
	}
	return nil
}

// consoleLine renders the human console form from spec.md §6:
// "[rule_name] description - User: <u>, IP: <trusted> -> <detected>, Severity: <s>"
func consoleLine(r report.Report) string {
	return fmt.Sprintf("[%s] %s - User: %s, IP: %s -> %s, Severity: %d\n",
		r.RuleName, r.Description, r.User, r.TrustedIP, r.DetectedIP, r.Severity)
}
