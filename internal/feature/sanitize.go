package feature

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// sanitizeValue normalizes driver values for JSON encoding. Byte slices are
// decoded as UTF-8 when valid, otherwise as Latin-1, which maps every byte to
// a code point and so never fails. Strings with invalid sequences get the
// replacement character.
func sanitizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return decodeBytes(t)
	case string:
		return sanitizeString(t)
	default:
		return v
	}
}

func decodeBytes(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return sanitizeString(string(b))
	}
	return string(decoded)
}

func sanitizeString(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

// sanitizeRow sanitizes every value of a result row in place.
func sanitizeRow(row map[string]any) {
	for k, v := range row {
		row[k] = sanitizeValue(v)
	}
}
