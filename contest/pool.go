package contest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/xxh3"

	"qsotrainer/callsign"
	"qsotrainer/strutil"
)

// ErrNoCandidates is returned when a callsign file yields no usable lines.
var ErrNoCandidates = errors.New("no valid stations")

// Candidate is one station a pool can hand out. Fields is empty when the
// contest generates the exchange itself.
type Candidate struct {
	Call   string
	Fields []string
}

// CandidatePool hands out candidates at random, avoiding repeats until every
// entry has been used once.
type CandidatePool struct {
	entries []Candidate
	used    map[uint64]struct{}
}

// NewCandidatePool wraps entries; the slice is not copied.
func NewCandidatePool(entries []Candidate) *CandidatePool {
	return &CandidatePool{
		entries: entries,
		used:    make(map[uint64]struct{}, len(entries)),
	}
}

// Len reports the number of entries.
func (p *CandidatePool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Next draws an unused candidate. Once the pool is exhausted the used set is
// cleared and drawing starts over.
func (p *CandidatePool) Next(rng Rand) (Candidate, bool) {
	if p == nil || len(p.entries) == 0 {
		return Candidate{}, false
	}
	available := make([]int, 0, len(p.entries))
	for i, e := range p.entries {
		if _, seen := p.used[xxh3.HashString(e.Call)]; !seen {
			available = append(available, i)
		}
	}
	var pick Candidate
	if len(available) == 0 {
		clear(p.used)
		pick = p.entries[rng.IntN(len(p.entries))]
	} else {
		pick = p.entries[available[rng.IntN(len(available))]]
	}
	p.used[xxh3.HashString(pick.Call)] = struct{}{}
	return Candidate{Call: pick.Call, Fields: append([]string(nil), pick.Fields...)}, true
}

// parseLine turns one CSV line into a candidate, or false to skip it.
type parseLine func(fields []string) (Candidate, bool)

// LoadCandidates reads a station file. Blank lines and lines starting with
// '#' or '!' are ignored; every other line is split on commas.
func LoadCandidates(path string, parse parseLine) ([]Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("contest: open %s: %w", path, err)
	}
	defer f.Close()
	entries, err := readCandidates(f, parse)
	if err != nil {
		return nil, fmt.Errorf("contest: load %s: %w", path, err)
	}
	return entries, nil
}

func readCandidates(r io.Reader, parse parseLine) ([]Candidate, error) {
	var entries []Candidate
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strutil.NormalizeUpper(parts[i])
		}
		if c, ok := parse(parts); ok {
			entries = append(entries, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoCandidates
	}
	return entries, nil
}

// callOnly accepts any line whose first field is a plausible callsign.
func callOnly(fields []string) (Candidate, bool) {
	call := callsign.Normalize(fieldAt(fields, 0))
	if !callsign.IsValid(call) {
		return Candidate{}, false
	}
	return Candidate{Call: call}, true
}

func callsFrom(calls ...string) []Candidate {
	out := make([]Candidate, 0, len(calls))
	for _, c := range calls {
		out = append(out, Candidate{Call: c})
	}
	return out
}

var defaultCalls = []string{
	"W1AW", "K1TTT", "N1MM", "W2FU", "K2LE", "N2IC", "W3LPL", "K3LR", "N3RS", "W4MYA",
	"K4JA", "N4AF", "W5WMU", "K5ZD", "N5TJ", "W6YX", "K6XX", "N6TV", "W7RN", "K7RL",
	"N7DR", "W8ND", "K8ND", "N8II", "W9RE", "K9CT", "N9RV", "W0AIH", "K0RF", "N0AX",
	"VE3EJ", "VE7CC", "VA3DX", "VE2IM", "VE6SV", "DL1A", "DL6FBL", "G3PXT", "G4AMJ",
	"JA1ABC", "JH1NBN", "PY2SEX", "LU1FAM", "ZS6EZ", "VK2GR", "ZL1BQD",
}

// loadOrDefault loads path with parse, falling back to the built-in entries
// when no file is configured or it cannot be used.
func loadOrDefault(path string, parse parseLine, fallback []Candidate) (*CandidatePool, error) {
	if strings.TrimSpace(path) == "" {
		return NewCandidatePool(fallback), nil
	}
	entries, err := LoadCandidates(path, parse)
	if err != nil {
		return NewCandidatePool(fallback), err
	}
	return NewCandidatePool(entries), nil
}
