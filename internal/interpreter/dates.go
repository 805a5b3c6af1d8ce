package interpreter

import (
	"strings"
	"unicode"
)

// minDateTokens is how many tokens of a date label must appear in a command.
const minDateTokens = 2

// MatchDate returns the index of the first date label with at least two of
// its tokens present as substrings of command. "Friday, July 11" tokenizes
// to friday/july/11, so "show me friday the 11th" matches it.
func MatchDate(command string, dates []string) (int, bool) {
	command = strings.ToLower(command)
	for index, label := range dates {
		matches := 0
		for _, token := range dateTokens(label) {
			if strings.Contains(command, token) {
				matches++
			}
		}
		if matches >= minDateTokens {
			return index, true
		}
	}
	return 0, false
}

func dateTokens(label string) []string {
	fields := strings.Fields(strings.ToLower(label))
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
