package relay

import "strings"

// greetingVocabulary is the fixed set of words treated as a greeting when
// they make up the entire message.
var greetingVocabulary = map[string]struct{}{
	"hi":              {},
	"hello":           {},
	"hey":             {},
	"hlo":             {},
	"hola":            {},
	"namaste":         {},
	"salam":           {},
	"assalamualaikum": {},
}

// IsGreeting reports whether text is a bare greeting. Only single-word
// messages qualify; "hello world" is a normal message and gets relayed.
func IsGreeting(text string) bool {
	fields := strings.Fields(text)
	if len(fields) != 1 {
		return false
	}
	_, ok := greetingVocabulary[strings.ToLower(fields[0])]
	return ok
}

// DetectLanguage guesses the language of text for the greeting prompt.
// Any Bengali-script rune makes it "bengali", everything else is "english".
func DetectLanguage(text string) string {
	for _, r := range text {
		if r >= 0x0980 && r <= 0x09FF {
			return "bengali"
		}
	}
	return "english"
}

// Truncate caps text at max runes.
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
