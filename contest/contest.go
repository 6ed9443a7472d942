// Package contest defines the contest-rules collaborator: what exchange each
// contest uses, how callers are drawn, and how a logged contact is scored.
package contest

import (
	"fmt"
	"strconv"
	"strings"

	"qsotrainer/strutil"
)

// Exchange is the ordered set of fields a station sends after the callsign.
type Exchange struct {
	Fields []string
}

// NewExchange builds an exchange from its fields.
func NewExchange(fields ...string) Exchange {
	return Exchange{Fields: fields}
}

func (e Exchange) String() string {
	return strings.Join(e.Fields, " ")
}

// Field returns the i-th field or "" when absent.
func (e Exchange) Field(i int) string {
	return fieldAt(e.Fields, i)
}

// FieldKind controls how operator input for a field is cleaned up.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldNumber
	FieldAlnum
	FieldSection
)

// ExchangeField describes one entry box the operator fills in.
type ExchangeField struct {
	Key          string
	Label        string
	Placeholder  string
	Width        int
	Kind         FieldKind
	Default      string
	FocusOnEnter bool
}

// NormalizeInput upper-cases the value and drops embedded whitespace; number
// fields keep digits only.
func NormalizeInput(value string, kind FieldKind) string {
	cleaned := strings.Join(strings.Fields(strutil.NormalizeUpper(value)), "")
	if kind != FieldNumber {
		return cleaned
	}
	var b strings.Builder
	for _, r := range cleaned {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Validation is the verdict on one logged contact.
type Validation struct {
	CallsignCorrect bool
	ExchangeCorrect bool
	Points          int
}

// Perfect reports whether both callsign and exchange were copied correctly.
func (v Validation) Perfect() bool {
	return v.CallsignCorrect && v.ExchangeCorrect
}

// Rand is the randomness a contest needs to draw callers and exchanges.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// ZoneLookup resolves a callsign to its CQ zone.
type ZoneLookup interface {
	CQZone(call string) (int, bool)
}

// UserInfo is the operator's own station data used to build the exchange we send.
type UserInfo struct {
	Callsign string
	Name     string
	Zone     int
	Section  string
}

// Contest is the polymorphic rules object the engine talks to.
type Contest interface {
	ID() string
	DisplayName() string
	ExchangeFields() []ExchangeField
	CQMessage() string
	GenerateExchange(call string, serial int) Exchange
	FormatExchange(ex Exchange) string
	UserExchange(serial int) []string
	NextCandidate(serial int) (string, Exchange, bool)
	Validate(expectedCall string, expected Exchange, receivedCall string, received []string) Validation
}

// Options configures a contest instance.
type Options struct {
	CQMessage    string
	CallsignFile string
	Settings     map[string]string
	User         UserInfo
	Rand         Rand
	Zones        ZoneLookup
}

func (o Options) setting(key, def string) string {
	if o.Settings == nil {
		return def
	}
	if v := strings.TrimSpace(o.Settings[key]); v != "" {
		return v
	}
	return def
}

func (o Options) intSetting(key string, def int) (int, error) {
	raw := o.setting(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("contest: setting %s: %w", key, err)
	}
	return v, nil
}

// base carries the pieces every contest shares.
type base struct {
	id   string
	name string
	cq   string
	pool *CandidatePool
	rng  Rand
	user UserInfo
}

func newBase(id, name string, opts Options, pool *CandidatePool) base {
	cq := strutil.NormalizeUpper(opts.CQMessage)
	if cq == "" {
		cq = "CQ TEST"
	}
	return base{
		id:   id,
		name: name,
		cq:   cq,
		pool: pool,
		rng:  opts.Rand,
		user: opts.User,
	}
}

func (b *base) ID() string          { return b.id }
func (b *base) DisplayName() string { return b.name }
func (b *base) CQMessage() string   { return b.cq }

func (b *base) FormatExchange(ex Exchange) string {
	return ex.String()
}

// draw pulls the next unused candidate from the pool.
func (b *base) draw() (Candidate, bool) {
	if b.pool == nil || b.rng == nil {
		return Candidate{}, false
	}
	return b.pool.Next(b.rng)
}

func scored(callOK, exchOK bool, points int) Validation {
	v := Validation{CallsignCorrect: callOK, ExchangeCorrect: exchOK}
	if callOK && exchOK {
		v.Points = points
	}
	return v
}

func sameCall(expected, received string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(received))
}

func fieldAt(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

// normalizeCutNumbers maps CW cut numbers back to digits (T=0, N=9).
func normalizeCutNumbers(value string) string {
	value = strutil.NormalizeUpper(value)
	return strings.Map(func(r rune) rune {
		switch r {
		case 'T':
			return '0'
		case 'N':
			return '9'
		}
		return r
	}, value)
}

// parseSerial reads a serial number that may be sent with cut numbers.
func parseSerial(value string) (int, bool) {
	normalized := normalizeCutNumbers(value)
	if normalized == "" {
		return 0, false
	}
	n, err := strconv.Atoi(normalized)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// formatSerial pads serials below 100 to three digits.
func formatSerial(serial int) string {
	if serial < 100 {
		return fmt.Sprintf("%03d", serial)
	}
	return strconv.Itoa(serial)
}
