// Package export writes a finished session to disk as a Markdown report and
// as JSON for other tools.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"

	"qsotrainer/stats"
)

// Session is what an export describes.
type Session struct {
	Callsign string
	Contest  string
	Records  []stats.QSORecord
}

// maxCharErrors bounds the character table in the report.
const maxCharErrors = 10

// Filename returns the report name for call at now, e.g.
// QSOT-N9UNX-20260314-1830.md. An empty callsign becomes NOCALL.
func Filename(call string, now time.Time, ext string) string {
	call = strings.ToUpper(strings.TrimSpace(call))
	if call == "" {
		call = "NOCALL"
	}
	call = strings.ReplaceAll(call, "/", "-")
	return fmt.Sprintf("QSOT-%s-%s%s", call, now.Format("20060102-1504"), ext)
}

// WriteMarkdown writes the report into dir and returns its path.
func WriteMarkdown(dir string, s Session, now time.Time) (string, error) {
	return write(dir, Filename(s.Callsign, now, ".md"), []byte(BuildMarkdown(s, now)))
}

type jsonReport struct {
	Callsign string            `json:"callsign"`
	Contest  string            `json:"contest"`
	Exported time.Time         `json:"exported"`
	Analysis stats.Analysis    `json:"analysis"`
	QSOs     []stats.QSORecord `json:"qsos"`
}

// WriteJSON writes the records and analysis as indented JSON into dir.
func WriteJSON(dir string, s Session, now time.Time) (string, error) {
	records := s.Records
	if records == nil {
		records = []stats.QSORecord{}
	}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(jsonReport{
		Callsign: s.Callsign,
		Contest:  s.Contest,
		Exported: now,
		Analysis: stats.Analyze(s.Records),
		QSOs:     records,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export: marshal: %w", err)
	}
	return write(dir, Filename(s.Callsign, now, ".json"), data)
}

func write(dir, name string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: ensure dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// BuildMarkdown renders the session report.
func BuildMarkdown(s Session, now time.Time) string {
	a := stats.Analyze(s.Records)
	var b strings.Builder

	b.WriteString("# QSOT Session Export\n\n")
	fmt.Fprintf(&b, "**Callsign:** %s  \n", s.Callsign)
	if s.Contest != "" {
		fmt.Fprintf(&b, "**Contest:** %s  \n", s.Contest)
	}
	fmt.Fprintf(&b, "**Exported:** %s\n\n", now.Format("2006-01-02 15:04"))

	b.WriteString("## Session Summary\n\n")
	fmt.Fprintf(&b, "- Total QSOs: %s\n", humanize.Comma(int64(a.TotalQSOs)))
	fmt.Fprintf(&b, "- Correct QSOs: %d (%.1f%%)\n", a.CorrectQSOs, a.CorrectRate)
	fmt.Fprintf(&b, "- Perfect QSOs: %d (%.1f%%)\n", a.PerfectQSOs, a.PerfectRate)
	fmt.Fprintf(&b, "- Total Points: %s\n\n", humanize.Comma(int64(a.TotalPoints)))

	b.WriteString("## Accuracy\n\n")
	fmt.Fprintf(&b, "- Callsign Accuracy: %d/%d (%.1f%%)\n", a.CorrectCallsigns, a.TotalQSOs, a.CallsignAccuracy)
	fmt.Fprintf(&b, "- Exchange Accuracy: %d/%d (%.1f%%)\n", a.CorrectExchanges, a.TotalQSOs, a.ExchangeAccuracy)
	if a.AvgBustDistance > 0 {
		fmt.Fprintf(&b, "- Average Bust Distance: %.1f\n", a.AvgBustDistance)
	}
	b.WriteString("\n")

	b.WriteString("## Streaks\n\n")
	fmt.Fprintf(&b, "- Current Clean: %d\n", a.Streaks.CurrentClean)
	fmt.Fprintf(&b, "- Max Clean: %d\n", a.Streaks.MaxClean)
	fmt.Fprintf(&b, "- Current Error: %d\n", a.Streaks.CurrentError)
	fmt.Fprintf(&b, "- Max Error: %d\n\n", a.Streaks.MaxError)

	b.WriteString("## F5/F8 Usage\n\n")
	fmt.Fprintf(&b, "- F5 (His Call): %d\n", a.CallOnlyCount)
	fmt.Fprintf(&b, "- F8 Callsign: %d\n", a.RepeatCallCount)
	fmt.Fprintf(&b, "- F8 Exchange: %d\n", a.RepeatExchCount)
	if a.TotalQSOs > 0 {
		fmt.Fprintf(&b, "- Total with F8: %d (%.1f%%)\n\n", a.RepeatAnyCount,
			float64(a.RepeatAnyCount)/float64(a.TotalQSOs)*100)
	} else {
		fmt.Fprintf(&b, "- Total with F8: %d\n\n", a.RepeatAnyCount)
	}

	b.WriteString("## Calling Station Speed\n\n")
	if a.TotalQSOs > 0 {
		fmt.Fprintf(&b, "- Average WPM: %.1f\n", a.AvgStationWPM)
		fmt.Fprintf(&b, "- WPM Range: %d - %d\n\n", a.MinStationWPM, a.MaxStationWPM)
	} else {
		b.WriteString("No QSOs logged yet.\n\n")
	}

	b.WriteString("## WPM Accuracy (2-WPM buckets)\n\n")
	if len(a.WPMBuckets) == 0 {
		b.WriteString("No QSOs logged yet.\n\n")
	} else {
		b.WriteString("| Bucket | Total | Correct | Accuracy |\n")
		b.WriteString("|--------|-------|---------|----------|\n")
		for _, bucket := range a.WPMBuckets {
			fmt.Fprintf(&b, "| %s | %d | %d | %.1f%% |\n", bucket.Label, bucket.Total, bucket.Correct, bucket.AccuracyPct)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Character Error Analysis\n\n")
	var charRows []stats.CharError
	for _, ce := range a.CharErrors {
		if ce.RatePct > 0 && len(charRows) < maxCharErrors {
			charRows = append(charRows, ce)
		}
	}
	if len(charRows) == 0 {
		b.WriteString("No character errors recorded.\n\n")
	} else {
		b.WriteString("| Char | Error Rate | Samples |\n")
		b.WriteString("|------|------------|---------|\n")
		for _, ce := range charRows {
			label := string(ce.Char)
			if ce.Char == ' ' {
				label = "[space]"
			}
			fmt.Fprintf(&b, "| %s | %.1f%% | %d |\n", label, ce.RatePct, ce.Samples)
		}
		b.WriteString("\n")
	}

	b.WriteString("## QSO Log\n\n")
	if len(s.Records) == 0 {
		b.WriteString("No QSOs logged yet.\n")
		return b.String()
	}
	b.WriteString("| # | Expected Call | Entered Call | Call OK | Expected Exch | Entered Exch | Exch OK | WPM | Points | AGN Call | AGN Exch | F5 Used |\n")
	b.WriteString("|---|---------------|--------------|---------|---------------|--------------|---------|-----|--------|----------|----------|---------|\n")
	for i, q := range s.Records {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %d | %d | %s | %s | %s |\n",
			i+1, q.ExpectedCall, q.EnteredCall, yesNo(q.CallsignCorrect),
			q.ExpectedExchange, q.EnteredExchange, yesNo(q.ExchangeCorrect),
			q.StationWPM, q.Points, yesNo(q.UsedRepeatCall), yesNo(q.UsedRepeatExch), yesNo(q.UsedCallOnly))
	}
	return b.String()
}
