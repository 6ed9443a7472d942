package contest

import (
	"fmt"
	"log"
)

const (
	cqwpxID = "cqwpx"

	serialMinDefault = 1000
	serialMaxDefault = 2500
	serialLimitLow   = 1
	serialLimitHigh  = 12000
)

// cqwpx sends 5NN plus a serial number; callers draw their serial from a
// configurable range to simulate stations deep into the contest.
type cqwpx struct {
	base
	serialMin int
	serialMax int
}

func newCQWPX(opts Options) (Contest, error) {
	lo, err := opts.intSetting("serial_min", serialMinDefault)
	if err != nil {
		return nil, err
	}
	hi, err := opts.intSetting("serial_max", serialMaxDefault)
	if err != nil {
		return nil, err
	}
	if lo < serialLimitLow || lo > serialLimitHigh || hi < serialLimitLow || hi > serialLimitHigh {
		return nil, fmt.Errorf("contest: serial range must be within %d..%d", serialLimitLow, serialLimitHigh)
	}
	if lo > hi {
		return nil, fmt.Errorf("contest: serial_min %d exceeds serial_max %d", lo, hi)
	}
	pool, perr := loadOrDefault(opts.CallsignFile, callOnly, callsFrom(defaultCalls...))
	if perr != nil {
		log.Printf("Contest: %v; using built-in callsigns", perr)
	}
	return &cqwpx{base: newBase(cqwpxID, "CQ WPX", opts, pool), serialMin: lo, serialMax: hi}, nil
}

func (c *cqwpx) ExchangeFields() []ExchangeField {
	return []ExchangeField{
		{Key: "rst", Label: "RST", Placeholder: "5NN", Width: 3, Kind: FieldText, Default: "5NN"},
		{Key: "serial", Label: "SER", Placeholder: "SER", Width: 5, Kind: FieldAlnum, FocusOnEnter: true},
	}
}

func (c *cqwpx) GenerateExchange(string, int) Exchange {
	serial := c.serialMin
	if c.rng != nil && c.serialMax > c.serialMin {
		serial += c.rng.IntN(c.serialMax - c.serialMin + 1)
	}
	return NewExchange("5NN", formatSerial(serial))
}

func (c *cqwpx) UserExchange(serial int) []string {
	return []string{"5NN", formatSerial(serial)}
}

func (c *cqwpx) NextCandidate(serial int) (string, Exchange, bool) {
	cand, ok := c.draw()
	if !ok {
		return "", Exchange{}, false
	}
	return cand.Call, c.GenerateExchange(cand.Call, serial), true
}

// Validate compares RST and serial after mapping cut numbers, so "TN5" logs
// as 095 and "5NN" matches "599".
func (c *cqwpx) Validate(expectedCall string, expected Exchange, receivedCall string, received []string) Validation {
	callOK := sameCall(expectedCall, receivedCall)
	rstOK := len(received) > 0 && expected.Field(0) != "" &&
		normalizeCutNumbers(expected.Field(0)) == normalizeCutNumbers(received[0])
	want, wok := parseSerial(expected.Field(1))
	got, gok := parseSerial(fieldAt(received, 1))
	return scored(callOK, rstOK && wok && gok && want == got, 1)
}
