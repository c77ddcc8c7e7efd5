// Package transcript encodes conversation turns as newline-delimited
// "Role: text" lines and decodes them back.
package transcript

import (
	"strings"

	"DiaBot/models"
)

const separator = ": "

var (
	escaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n", `\r`, "\r")
)

// Label is the capitalized role name written in front of each line.
func Label(r models.Role) string {
	switch r {
	case models.RoleUser:
		return "User"
	case models.RoleAssistant:
		return "Assistant"
	}
	s := string(r)
	if s == "" {
		return "User"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatTurn renders a turn as a single transcript line.
func FormatTurn(t models.Turn) string {
	return Label(t.Role) + separator + escaper.Replace(t.Content)
}

// Serialize renders turns in order, one line each.
func Serialize(turns []models.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, FormatTurn(t))
	}
	return strings.Join(lines, "\n")
}

// Append adds turns to existing content.
func Append(content string, turns ...models.Turn) string {
	if len(turns) == 0 {
		return content
	}
	more := Serialize(turns)
	if content == "" {
		return more
	}
	return content + "\n" + more
}

// Parse splits content into turns. Lines without a ": " separator are skipped.
// content must have been written by Serialize or Append: every line is
// unescaped, so a raw backslash sequence such as `C:\new` would not survive.
func Parse(content string) []models.Turn {
	turns := []models.Turn{}
	if content == "" {
		return turns
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		label, text, ok := strings.Cut(line, separator)
		if !ok || strings.TrimSpace(label) == "" {
			continue
		}
		turns = append(turns, models.Turn{
			Role:    models.Role(strings.ToLower(strings.TrimSpace(label))),
			Content: unescaper.Replace(text),
		})
	}
	return turns
}
