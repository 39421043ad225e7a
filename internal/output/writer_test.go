package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/skywalker-88/nightwatch/internal/report"
)

func sampleReport() report.Report {
	return report.Report{
		Severity:    8,
		RuleName:    report.RuleSuddenIPSwitch,
		User:        "alice",
		DetectedIP:  "2.2.2.2",
		TrustedIP:   "1.1.1.1",
		Timestamp:   1000,
		Description: "address changed",
	}
}

func TestWriter_LineJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatLineJSON)
	if err := w.Write(sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("want trailing newline")
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("want exactly one line, got %q", out)
	}
	if !strings.Contains(out, `"rule_name":"Sudden IP Switch"`) {
		t.Fatalf("missing expected field: %q", out)
	}
}

func TestWriter_PrettyJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatPrettyJSON)
	if err := w.Write(sampleReport()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  \"severity\"") {
		t.Fatalf("want indented output, got %q", buf.String())
	}
}

func TestWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatConsole)
	if err := w.Write(sampleReport()); err != nil {
		t.Fatal(err)
	}
	want := "[Sudden IP Switch] address changed - User: alice, IP: 1.1.1.1 -> 2.2.2.2, Severity: 8\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriter_UnknownFormatFallsBackToLineJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Format("bogus"))
	if w.format != FormatLineJSON {
		t.Fatalf("want fallback to line-json, got %q", w.format)
	}
}

func TestWriter_MultipleWritesAppend(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatLineJSON)
	w.Write(sampleReport())
	w.Write(sampleReport())
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("want two lines, got %q", buf.String())
	}
}
