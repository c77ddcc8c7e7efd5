// Package utils holds small input checks shared by the handlers.
package utils

import "strings"

func isASCIILetter(r rune) bool { return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') }
func isASCIIDigit(r rune) bool  { return '0' <= r && r <= '9' }

// HasLetter reports whether s contains an ASCII letter.
func HasLetter(s string) bool { return strings.ContainsFunc(s, isASCIILetter) }

// HasNumber reports whether s contains an ASCII digit.
func HasNumber(s string) bool { return strings.ContainsFunc(s, isASCIIDigit) }

// ValidPassword requires at least minLen characters with a letter and a digit.
func ValidPassword(s string, minLen int) bool {
	return len(s) >= minLen && HasLetter(s) && HasNumber(s)
}
