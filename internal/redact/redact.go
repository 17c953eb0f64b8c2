// Package redact scrubs credentials out of requirement documents before
// their text is parsed, stored in results or exported.
package redact

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// pemPattern matches PEM key blocks across multiple lines.
var pemPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z ]+KEY-----.*?-----END [A-Z ]+KEY-----`)

type rule struct {
	name string
	re   *regexp.Regexp
}

// rules holds single-line secret patterns in priority order.
var rules = []rule{
	{"aws-access-key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"api-key", regexp.MustCompile(`(?:^|\s|["'])sk-[a-zA-Z0-9]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+`)},
	{"bearer-token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-._~+/]{20,}=*`)},
	// Requires a value so that requirement prose such as "password reset"
	// is left alone.
	{"password-assignment", regexp.MustCompile(`(?i)password\s*[:=]\s*\S+`)},
	{"connection-string", regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s:/@]+:[^\s@]+@`)},
}

// Redact replaces known secret patterns in input with [REDACTED].
// The number of lines is preserved so that requirement lines keep their
// positions.
func Redact(input string) string {
	out, _ := redactCount(input)
	return out
}

// Findings returns the names of the rules that match input, in rule order.
func Findings(input string) []string {
	var names []string
	if pemPattern.MatchString(input) {
		names = append(names, "pem-key")
	}
	for _, r := range rules {
		if r.re.MatchString(input) {
			names = append(names, r.name)
		}
	}
	return names
}

func redactCount(input string) (string, int) {
	n := 0
	input = pemPattern.ReplaceAllStringFunc(input, func(match string) string {
		n++
		lines := strings.Split(match, "\n")
		for i := range lines {
			lines[i] = redacted
		}
		return strings.Join(lines, "\n")
	})
	for _, r := range rules {
		input = r.re.ReplaceAllStringFunc(input, func(match string) string {
			n++
			// Keep a leading delimiter consumed by the pattern, newlines included.
			lead := len(match) - len(strings.TrimLeft(match, " \t\r\n\"'"))
			return match[:lead] + redacted
		})
	}
	return input, n
}

// Count returns how many replacements Redact would make in input.
func Count(input string) int {
	_, n := redactCount(input)
	return n
}
