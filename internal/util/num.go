package util

import (
	"strconv"
	"strings"
)

// LenientFloat parses a numeric field from the backend or from raw user
// input. Malformed or empty input yields 0 rather than an error; extraction
// and draft editing never fail a whole operation for one bad field.
func LenientFloat(input string) float64 {
	token := strings.TrimSpace(strings.ReplaceAll(input, " ", " "))
	if token == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(normalizeNumericToken(token), 64)
	if err != nil {
		return 0
	}
	return parsed
}

// normalizeNumericToken rewrites comma decimals and grouped thousands into
// plain ParseFloat form. A trailing three-digit group after a lone separator
// on a short head is treated as thousands ("1.000" -> 1000), matching how
// quantities show up in supplier documents.
func normalizeNumericToken(token string) string {
	token = strings.ReplaceAll(token, " ", "")

	lastComma := strings.LastIndex(token, ",")
	lastDot := strings.LastIndex(token, ".")

	sep := lastComma
	if lastDot > lastComma {
		sep = lastDot
	}
	if sep < 0 {
		return token
	}

	head := strings.ReplaceAll(token[:sep], ".", "")
	head = strings.ReplaceAll(head, ",", "")
	frac := token[sep+1:]

	if len(frac) == 3 && len(head) <= 3 && isDigits(head) && isDigits(frac) {
		return head + frac
	}
	return head + "." + frac
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
