package utils

import "strings"

// NormalizeTaxID keeps only the ASCII digits of a tax id, so
// "12.345.678/0001-90" and "12345678000190" are the same key.
func NormalizeTaxID(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
