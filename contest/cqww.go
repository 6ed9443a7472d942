package contest

import (
	"fmt"
	"log"
	"strings"
)

const cqwwID = "cqww"

// cqww sends 5NN plus the CQ zone.
type cqww struct {
	base
	zones ZoneLookup
}

func newCQWW(opts Options) (Contest, error) {
	pool, err := loadOrDefault(opts.CallsignFile, callOnly, callsFrom(defaultCalls...))
	if err != nil {
		log.Printf("Contest: %v; using built-in callsigns", err)
	}
	return &cqww{base: newBase(cqwwID, "CQ World Wide DX", opts, pool), zones: opts.Zones}, nil
}

// zoneByPrefix is a coarse fallback when no CTY database is loaded.
func zoneByPrefix(call string) int {
	call = strings.ToUpper(call)
	switch {
	case strings.HasPrefix(call, "VE"), strings.HasPrefix(call, "VA"):
		return 4
	case strings.HasPrefix(call, "JA"), strings.HasPrefix(call, "JH"), strings.HasPrefix(call, "JR"):
		return 25
	case strings.HasPrefix(call, "DL"), strings.HasPrefix(call, "DF"), strings.HasPrefix(call, "DK"),
		strings.HasPrefix(call, "EA"):
		return 14
	case strings.HasPrefix(call, "UA"), strings.HasPrefix(call, "RU"):
		return 16
	case strings.HasPrefix(call, "VK"):
		return 30
	case strings.HasPrefix(call, "ZL"):
		return 32
	case strings.HasPrefix(call, "ZS"):
		return 38
	case strings.HasPrefix(call, "PY"), strings.HasPrefix(call, "PP"):
		return 11
	case strings.HasPrefix(call, "LU"):
		return 13
	case strings.HasPrefix(call, "W"), strings.HasPrefix(call, "K"), strings.HasPrefix(call, "N"),
		strings.HasPrefix(call, "AA"):
		return 5
	case strings.HasPrefix(call, "G"), strings.HasPrefix(call, "M"), strings.HasPrefix(call, "F"):
		return 14
	case strings.HasPrefix(call, "I"):
		return 15
	}
	return 5
}

func (c *cqww) zoneFor(call string) int {
	if c.zones != nil {
		if z, ok := c.zones.CQZone(call); ok {
			return z
		}
	}
	return zoneByPrefix(call)
}

func (c *cqww) ExchangeFields() []ExchangeField {
	return []ExchangeField{
		{Key: "rst", Label: "RST", Placeholder: "5NN", Width: 3, Kind: FieldText, Default: "5NN"},
		{Key: "zone", Label: "Zone", Placeholder: "05", Width: 2, Kind: FieldAlnum, FocusOnEnter: true},
	}
}

func (c *cqww) GenerateExchange(call string, _ int) Exchange {
	return NewExchange("5NN", fmt.Sprintf("%02d", c.zoneFor(call)))
}

func (c *cqww) UserExchange(int) []string {
	zone := c.user.Zone
	if zone <= 0 {
		zone = c.zoneFor(c.user.Callsign)
	}
	return []string{"5NN", fmt.Sprintf("%02d", zone)}
}

func (c *cqww) NextCandidate(serial int) (string, Exchange, bool) {
	cand, ok := c.draw()
	if !ok {
		return "", Exchange{}, false
	}
	return cand.Call, c.GenerateExchange(cand.Call, serial), true
}

// Validate accepts either "RST ZONE" or just the zone.
func (c *cqww) Validate(expectedCall string, expected Exchange, receivedCall string, received []string) Validation {
	callOK := sameCall(expectedCall, receivedCall)
	want, ok := parseSerial(expected.Field(1))
	exchOK := false
	if ok && len(received) > 0 {
		got := received[0]
		if len(received) >= 2 {
			got = received[1]
		}
		if z, zok := parseSerial(got); zok {
			exchOK = z == want
		}
	}
	return scored(callOK, exchOK, 1)
}
