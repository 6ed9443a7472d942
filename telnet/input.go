package telnet

import (
	"fmt"
	"log"
	"strings"
)

// InputValidationError is a non-fatal input violation. The session stays
// open and the client is prompted again.
type InputValidationError struct {
	reason  string
	context string
	kind    inputErrorKind
	maxLen  int
	allowed string
}

func (e *InputValidationError) Error() string {
	return e.reason
}

type inputErrorKind string

const (
	inputErrorTooLong     inputErrorKind = "too_long"
	inputErrorInvalidChar inputErrorKind = "invalid_char"
)

// message is the text shown to the client.
func (e *InputValidationError) message() string {
	label := friendlyContextLabel(e.context)
	switch e.kind {
	case inputErrorTooLong:
		return fmt.Sprintf("%s too long (max %d characters).", label, e.maxLen)
	default:
		return fmt.Sprintf("%s contains an invalid character. Allowed: %s.", label, e.allowed)
	}
}

// ReadLine reads a single logical line from the telnet client while enforcing
// three invariants:
//  1. Telnet IAC negotiations are consumed without leaking into user input,
//     including subnegotiation payloads (IAC SB ... IAC SE).
//  2. User-supplied characters are bounded to maxLen bytes.
//  3. Only letters, digits, space, '/', '#', '@' and '-' are accepted, plus
//     '?' when allowQuery is set (the repeat request).
//
// '\r' ends the line and a following '\n' (or NUL) is consumed per RFC 854.
// BS/DEL remove one byte, Ctrl+U clears the line, and Ctrl+W removes the last
// word. Letters are upper-cased.
func (c *Client) ReadLine(maxLen int, context string, allowQuery bool) (string, error) {
	if maxLen <= 0 {
		maxLen = defaultCommandLineLimit
	}
	if context == "" {
		context = "command"
	}

	var line []byte
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return "", err
		}

		if c.skipNextEOL {
			c.skipNextEOL = false
			if b == '\n' || b == 0x00 {
				continue
			}
		}

		if b == IAC {
			if err := c.consumeIACSequence(); err != nil {
				return "", err
			}
			continue
		}

		if b == '\n' || b == '\r' {
			if err := c.echo("\r\n"); err != nil {
				return "", err
			}
			c.skipNextEOL = b == '\r'
			break
		}

		switch b {
		case 0x08, 0x7f: // BS or DEL
			if len(line) > 0 {
				line = line[:len(line)-1]
				if err := c.echoErase(1); err != nil {
					return "", err
				}
			}
			continue
		case 0x15: // Ctrl+U
			if erased := len(line); erased > 0 {
				line = line[:0]
				if err := c.echoErase(erased); err != nil {
					return "", err
				}
			}
			continue
		case 0x17: // Ctrl+W
			if erased := wordEraseCount(line); erased > 0 {
				line = line[:len(line)-erased]
				if err := c.echoErase(erased); err != nil {
					return "", err
				}
			}
			continue
		}

		if len(line) >= maxLen {
			c.logRejectedInput(context, fmt.Sprintf("exceeded %d-byte limit", maxLen))
			return "", c.drainInvalid(&InputValidationError{
				reason:  fmt.Sprintf("%s input exceeds %d-byte limit", context, maxLen),
				context: context,
				kind:    inputErrorTooLong,
				maxLen:  maxLen,
				allowed: allowedCharacterList(allowQuery),
			})
		}
		if !isAllowedInputByte(b, allowQuery) {
			c.logRejectedInput(context, fmt.Sprintf("forbidden byte 0x%02X", b))
			return "", c.drainInvalid(&InputValidationError{
				reason:  fmt.Sprintf("%s input contains forbidden byte 0x%02X", context, b),
				context: context,
				kind:    inputErrorInvalidChar,
				maxLen:  maxLen,
				allowed: allowedCharacterList(allowQuery),
			})
		}

		if b >= 'a' && b <= 'z' {
			b -= 'a' - 'A'
		}
		if err := c.echo(string(b)); err != nil {
			return "", err
		}
		line = append(line, b)
	}

	return string(line), nil
}

// drainInvalid discards the rest of the offending line so the next prompt
// starts clean. Read errors win over the validation error.
func (c *Client) drainInvalid(verr *InputValidationError) error {
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' {
			return verr
		}
		if b == '\r' {
			c.skipNextEOL = true
			return verr
		}
	}
}

// consumeIACSequence drains a single telnet IAC sequence.
func (c *Client) consumeIACSequence() error {
	cmd, err := c.reader.ReadByte()
	if err != nil {
		return err
	}
	switch cmd {
	case IAC:
		// Escaped 0xFF; input is ASCII only.
		return nil
	case DO, DONT, WILL, WONT:
		_, err = c.reader.ReadByte()
		return err
	case SB:
		return c.consumeSubnegotiation()
	default:
		return nil
	}
}

// consumeSubnegotiation drains bytes until IAC SE, honoring IAC escapes.
func (c *Client) consumeSubnegotiation() error {
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return err
		}
		if b != IAC {
			continue
		}
		next, err := c.reader.ReadByte()
		if err != nil {
			return err
		}
		if next == SE {
			return nil
		}
	}
}

func (c *Client) echo(s string) error {
	if !c.echoInput || s == "" {
		return nil
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.writer.WriteString(s); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *Client) echoErase(count int) error {
	if count <= 0 {
		return nil
	}
	return c.echo(strings.Repeat("\b \b", count))
}

func wordEraseCount(line []byte) int {
	if len(line) == 0 {
		return 0
	}
	i := len(line)
	for i > 0 && line[i-1] == ' ' {
		i--
	}
	j := i
	for j > 0 && line[j-1] != ' ' {
		j--
	}
	return len(line) - j
}

func isAllowedInputByte(b byte, allowQuery bool) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == ' ', b == '/', b == '#', b == '@', b == '-':
		return true
	case allowQuery && b == '?':
		return true
	default:
		return false
	}
}

func allowedCharacterList(allowQuery bool) string {
	base := "letters, numbers, space, '/', '#', '@', '-'"
	if allowQuery {
		base += ", '?'"
	}
	return base
}

func friendlyContextLabel(context string) string {
	context = strings.TrimSpace(context)
	if context == "" {
		return "Input"
	}
	return strings.ToUpper(context[:1]) + context[1:]
}

// logRejectedInput names the client by callsign once known, otherwise by
// remote address.
func (c *Client) logRejectedInput(context, reason string) {
	id := strings.TrimSpace(c.callsign)
	if id == "" {
		id = c.address
	}
	log.Printf("Telnet: rejected %s input from %s: %s", context, id, reason)
}
