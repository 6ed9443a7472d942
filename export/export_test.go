package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"

	"qsotrainer/stats"
)

var exportTime = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func sampleSession() Session {
	return Session{
		Callsign: "n9unx",
		Contest:  "cwt",
		Records: []stats.QSORecord{
			{ExpectedCall: "W1AW", EnteredCall: "W1AW", CallsignCorrect: true,
				ExpectedExchange: "JOE 1", EnteredExchange: "JOE 1", ExchangeCorrect: true,
				StationWPM: 30, Points: 1},
			{ExpectedCall: "K3LR", EnteredCall: "K3LP",
				ExpectedExchange: "TIM 55", EnteredExchange: "TIM 55", ExchangeCorrect: true,
				StationWPM: 33, UsedRepeatCall: true},
		},
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(" n9unx ", exportTime, ".md"); got != "QSOT-N9UNX-20260314-1830.md" {
		t.Fatalf("filename = %s", got)
	}
	if got := Filename("", exportTime, ".json"); got != "QSOT-NOCALL-20260314-1830.json" {
		t.Fatalf("empty call filename = %s", got)
	}
	if got := Filename("DL/N9UNX", exportTime, ".md"); strings.Contains(got, "/") {
		t.Fatalf("slash kept in filename %s", got)
	}
}

func TestBuildMarkdownSections(t *testing.T) {
	md := BuildMarkdown(sampleSession(), exportTime)
	for _, want := range []string{
		"# QSOT Session Export",
		"**Exported:** 2026-03-14 18:30",
		"- Total QSOs: 2",
		"- Correct QSOs: 1 (50.0%)",
		"- Callsign Accuracy: 1/2 (50.0%)",
		"- F8 Callsign: 1",
		"- Total with F8: 1 (50.0%)",
		"- WPM Range: 30 - 33",
		"| 30-31 | 1 | 1 | 100.0% |",
		"| 2 | K3LR | K3LP | No | TIM 55 | TIM 55 | Yes | 33 | 0 | Yes | No | No |",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestBuildMarkdownEmpty(t *testing.T) {
	md := BuildMarkdown(Session{Callsign: "N9UNX"}, exportTime)
	if !strings.Contains(md, "No character errors recorded.") || !strings.HasSuffix(md, "No QSOs logged yet.\n") {
		t.Fatalf("unexpected empty report:\n%s", md)
	}
}

func TestWriteMarkdownAndJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	s := sampleSession()

	mdPath, err := WriteMarkdown(dir, s, exportTime)
	if err != nil {
		t.Fatalf("write markdown: %v", err)
	}
	if filepath.Base(mdPath) != "QSOT-N9UNX-20260314-1830.md" {
		t.Fatalf("markdown path = %s", mdPath)
	}

	jsonPath, err := WriteJSON(dir, s, exportTime)
	if err != nil {
		t.Fatalf("write json: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var decoded struct {
		Callsign string            `json:"callsign"`
		QSOs     []stats.QSORecord `json:"qsos"`
	}
	if err := jsoniter.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if decoded.Callsign != "n9unx" || len(decoded.QSOs) != 2 || decoded.QSOs[1].EnteredCall != "K3LP" {
		t.Fatalf("unexpected json content %+v", decoded)
	}
}
