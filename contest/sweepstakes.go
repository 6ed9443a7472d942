package contest

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"qsotrainer/callsign"
	"qsotrainer/strutil"
)

const sweepstakesID = "sweepstakes"

var precedences = []string{"A", "B", "M", "Q", "S", "U"}

// sweepstakes exchange: serial, precedence, call, check, section. Callers
// omit their call from the fields we log.
type sweepstakes struct {
	base
	precedence string
	check      string
	section    string
}

func newSweepstakes(opts Options) (Contest, error) {
	pool, err := loadOrDefault(opts.CallsignFile, callOnly, callsFrom(defaultCalls...))
	if err != nil {
		log.Printf("Contest: %v; using built-in callsigns", err)
	}
	section := opts.User.Section
	if section == "" {
		section = "CT"
	}
	return &sweepstakes{
		base:       newBase(sweepstakesID, "ARRL Sweepstakes", opts, pool),
		precedence: strutil.NormalizeUpper(opts.setting("user_precedence", "A")),
		check:      strutil.NormalizeUpper(opts.setting("user_check", "99")),
		section:    strutil.NormalizeUpper(opts.setting("user_section", section)),
	}, nil
}

func sectionByArea(area byte) string {
	switch area {
	case '1':
		return "CT"
	case '2':
		return "NNJ"
	case '3':
		return "EPA"
	case '4':
		return "VA"
	case '5':
		return "NTX"
	case '6':
		return "SDG"
	case '7':
		return "OR"
	case '8':
		return "OH"
	case '9':
		return "IL"
	case '0':
		return "CO"
	}
	return "SDG"
}

func (c *sweepstakes) ExchangeFields() []ExchangeField {
	return []ExchangeField{
		{Key: "serial", Label: "NR", Placeholder: "001", Width: 4, Kind: FieldNumber},
		{Key: "precedence", Label: "Prec", Placeholder: "A", Width: 1, Kind: FieldText},
		{Key: "check", Label: "CK", Placeholder: "99", Width: 2, Kind: FieldNumber},
		{Key: "section", Label: "Sec", Placeholder: "CT", Width: 3, Kind: FieldSection},
	}
}

func (c *sweepstakes) GenerateExchange(call string, serial int) Exchange {
	prec := precedences[0]
	check := 99
	if c.rng != nil {
		prec = precedences[c.rng.IntN(len(precedences))]
		check = 60 + c.rng.IntN(40)
	}
	return NewExchange(strconv.Itoa(serial), prec, fmt.Sprintf("%02d", check), sectionByArea(callsign.CallArea(call)))
}

func (c *sweepstakes) UserExchange(serial int) []string {
	return []string{strconv.Itoa(serial), c.precedence, c.user.Callsign, c.check, c.section}
}

func (c *sweepstakes) NextCandidate(serial int) (string, Exchange, bool) {
	cand, ok := c.draw()
	if !ok {
		return "", Exchange{}, false
	}
	return cand.Call, c.GenerateExchange(cand.Call, serial), true
}

func (c *sweepstakes) Validate(expectedCall string, expected Exchange, receivedCall string, received []string) Validation {
	callOK := sameCall(expectedCall, receivedCall)
	exchOK := false
	if len(received) >= 4 && len(expected.Fields) >= 4 {
		serialOK := sameNumber(expected.Fields[0], received[0])
		precOK := received[1] != "" && strings.EqualFold(received[1][:1], expected.Fields[1])
		checkOK := sameNumber(expected.Fields[2], received[2])
		sectionOK := strings.EqualFold(expected.Fields[3], received[3])
		exchOK = serialOK && precOK && checkOK && sectionOK
	}
	return scored(callOK, exchOK, 2)
}

func sameNumber(a, b string) bool {
	x, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return false
	}
	y, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return false
	}
	return x == y
}
