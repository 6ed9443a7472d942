package playback

import (
	"strings"
	"time"
)

// Element lengths in dit units. PARIS with its trailing word gap is 50 units.
const (
	unitsDit        = 1
	unitsDah        = 3
	unitsElementGap = 1
	unitsCharGap    = 3
	unitsWordGap    = 7
)

var morseTable = map[rune]string{
	'A': ".-", 'B': "-...", 'C': "-.-.", 'D': "-..", 'E': ".", 'F': "..-.",
	'G': "--.", 'H': "....", 'I': "..", 'J': ".---", 'K': "-.-", 'L': ".-..",
	'M': "--", 'N': "-.", 'O': "---", 'P': ".--.", 'Q': "--.-", 'R': ".-.",
	'S': "...", 'T': "-", 'U': "..-", 'V': "...-", 'W': ".--", 'X': "-..-",
	'Y': "-.--", 'Z': "--..",
	'0': "-----", '1': ".----", '2': "..---", '3': "...--", '4': "....-",
	'5': ".....", '6': "-....", '7': "--...", '8': "---..", '9': "----.",
	'/': "-..-.", '?': "..--..", '.': ".-.-.-", ',': "--..--", '=': "-...-",
}

// Encode returns the dot/dash pattern of each character, space separated.
// Unknown characters are skipped.
func Encode(text string) string {
	var parts []string
	for _, word := range strings.Fields(strings.ToUpper(text)) {
		var chars []string
		for _, r := range word {
			if code, ok := morseTable[r]; ok {
				chars = append(chars, code)
			}
		}
		if len(chars) > 0 {
			parts = append(parts, strings.Join(chars, " "))
		}
	}
	return strings.Join(parts, " / ")
}

func charUnits(code string) int {
	n := 0
	for i, el := range code {
		if i > 0 {
			n += unitsElementGap
		}
		if el == '-' {
			n += unitsDah
		} else {
			n += unitsDit
		}
	}
	return n
}

// Units is the length of text in dit units, without a trailing gap.
func Units(text string) int {
	total := 0
	words := 0
	for _, word := range strings.Fields(strings.ToUpper(text)) {
		chars := 0
		wordUnits := 0
		for _, r := range word {
			code, ok := morseTable[r]
			if !ok {
				continue
			}
			if chars > 0 {
				wordUnits += unitsCharGap
			}
			wordUnits += charUnits(code)
			chars++
		}
		if chars == 0 {
			continue
		}
		if words > 0 {
			total += unitsWordGap
		}
		total += wordUnits
		words++
	}
	return total
}

// UnitDuration is the dit length at wpm (PARIS timing).
func UnitDuration(wpm int) time.Duration {
	if wpm <= 0 {
		wpm = 20
	}
	return 1200 * time.Millisecond / time.Duration(wpm)
}

// Duration is how long text takes to send at wpm.
func Duration(text string, wpm int) time.Duration {
	return time.Duration(Units(text)) * UnitDuration(wpm)
}

// WordGap is the silence between words at wpm.
func WordGap(wpm int) time.Duration {
	return unitsWordGap * UnitDuration(wpm)
}
