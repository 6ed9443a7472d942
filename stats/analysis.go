package stats

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	lev "github.com/agnivade/levenshtein"
)

// minCharSamples is how often a character must appear before its error rate
// is reported.
const minCharSamples = 3

// CharError is the copy error rate of one character.
type CharError struct {
	Char    rune
	RatePct float64
	Samples int
}

// WPMBucket is accuracy for callers in a 2-WPM speed band.
type WPMBucket struct {
	Label       string
	Low         int
	Total       int
	Correct     int
	AccuracyPct float64
}

// Streaks counts runs of correct (clean) and incorrect (error) contacts.
type Streaks struct {
	CurrentClean int
	MaxClean     int
	CurrentError int
	MaxError     int
}

// Analysis summarizes a session.
type Analysis struct {
	TotalQSOs        int
	CorrectCallsigns int
	CorrectExchanges int
	CorrectQSOs      int
	PerfectQSOs      int
	TotalPoints      int
	CallsignAccuracy float64
	ExchangeAccuracy float64
	CorrectRate      float64
	PerfectRate      float64

	AvgStationWPM float64
	MinStationWPM int
	MaxStationWPM int
	WPMBuckets    []WPMBucket

	CharErrors []CharError
	// AvgBustDistance is the mean edit distance of miscopied callsigns.
	AvgBustDistance float64

	RepeatCallCount int
	RepeatExchCount int
	RepeatAnyCount  int
	CallOnlyCount   int

	Streaks Streaks
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// Analyze computes the session analysis from records in log order.
func Analyze(qsos []QSORecord) Analysis {
	var a Analysis
	if len(qsos) == 0 {
		return a
	}
	a.TotalQSOs = len(qsos)
	wpmSum := 0
	busts, bustDist := 0, 0
	a.MinStationWPM = qsos[0].StationWPM
	for _, q := range qsos {
		if q.CallsignCorrect {
			a.CorrectCallsigns++
		} else {
			busts++
			bustDist += lev.ComputeDistance(strings.ToUpper(q.ExpectedCall), strings.ToUpper(q.EnteredCall))
		}
		if q.ExchangeCorrect {
			a.CorrectExchanges++
		}
		if q.Correct() {
			a.CorrectQSOs++
		}
		if q.Perfect() {
			a.PerfectQSOs++
		}
		a.TotalPoints += q.Points
		if q.UsedRepeatCall {
			a.RepeatCallCount++
		}
		if q.UsedRepeatExch {
			a.RepeatExchCount++
		}
		if q.UsedRepeatCall || q.UsedRepeatExch {
			a.RepeatAnyCount++
		}
		if q.UsedCallOnly {
			a.CallOnlyCount++
		}
		wpmSum += q.StationWPM
		if q.StationWPM < a.MinStationWPM {
			a.MinStationWPM = q.StationWPM
		}
		if q.StationWPM > a.MaxStationWPM {
			a.MaxStationWPM = q.StationWPM
		}
	}
	a.CallsignAccuracy = pct(a.CorrectCallsigns, a.TotalQSOs)
	a.ExchangeAccuracy = pct(a.CorrectExchanges, a.TotalQSOs)
	a.CorrectRate = pct(a.CorrectQSOs, a.TotalQSOs)
	a.PerfectRate = pct(a.PerfectQSOs, a.TotalQSOs)
	a.AvgStationWPM = float64(wpmSum) / float64(a.TotalQSOs)
	if busts > 0 {
		a.AvgBustDistance = float64(bustDist) / float64(busts)
	}
	a.WPMBuckets = wpmBuckets(qsos)
	a.CharErrors = charErrors(qsos)
	a.Streaks = streaks(qsos)
	return a
}

func wpmBuckets(qsos []QSORecord) []WPMBucket {
	byLow := map[int]*WPMBucket{}
	for _, q := range qsos {
		low := q.StationWPM - q.StationWPM%2
		b, ok := byLow[low]
		if !ok {
			b = &WPMBucket{Low: low, Label: fmt.Sprintf("%d-%d", low, low+1)}
			byLow[low] = b
		}
		b.Total++
		if q.Correct() {
			b.Correct++
		}
	}
	out := make([]WPMBucket, 0, len(byLow))
	for _, b := range byLow {
		b.AccuracyPct = pct(b.Correct, b.Total)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Low < out[j].Low })
	return out
}

func streaks(qsos []QSORecord) Streaks {
	var s Streaks
	for _, q := range qsos {
		if q.Correct() {
			s.CurrentClean++
			s.CurrentError = 0
		} else {
			s.CurrentError++
			s.CurrentClean = 0
		}
		s.MaxClean = max(s.MaxClean, s.CurrentClean)
		s.MaxError = max(s.MaxError, s.CurrentError)
	}
	return s
}

// charErrors compares expected and entered text position by position. Every
// alphanumeric character sent counts as a sample; mismatches only count on
// contacts that were wrong.
func charErrors(qsos []QSORecord) []CharError {
	totals := map[rune]int{}
	errs := map[rune]int{}
	for _, q := range qsos {
		countChars(q.ExpectedCall, totals)
		countChars(q.ExpectedExchange, totals)
		if !q.CallsignCorrect {
			countMismatches(q.ExpectedCall, q.EnteredCall, errs)
		}
		if !q.ExchangeCorrect {
			countMismatches(q.ExpectedExchange, q.EnteredExchange, errs)
		}
	}
	var out []CharError
	for ch, total := range totals {
		if total < minCharSamples {
			continue
		}
		out = append(out, CharError{Char: ch, RatePct: pct(errs[ch], total), Samples: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RatePct != out[j].RatePct {
			return out[i].RatePct > out[j].RatePct
		}
		return out[i].Char < out[j].Char
	})
	return out
}

func countChars(s string, totals map[rune]int) {
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			totals[r]++
		}
	}
}

func countMismatches(expected, entered string, errs map[rune]int) {
	exp := []rune(strings.ToUpper(expected))
	got := []rune(strings.ToUpper(entered))
	for i, r := range exp {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		if i >= len(got) || got[i] != r {
			errs[r]++
		}
	}
}
