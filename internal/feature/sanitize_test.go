package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeValueUTF8Bytes(t *testing.T) {
	got := sanitizeValue([]byte("Müllerstraße"))
	assert.Equal(t, "Müllerstraße", got)
}

func TestSanitizeValueLatin1Fallback(t *testing.T) {
	// "Straße" in Latin-1: 0xDF is ß and is not valid UTF-8.
	latin1 := []byte{'S', 't', 'r', 'a', 0xDF, 'e'}
	got := sanitizeValue(latin1)
	assert.Equal(t, "Straße", got)
}

func TestSanitizeValueInvalidString(t *testing.T) {
	got := sanitizeValue("bad\xff\xfebytes")
	s := got.(string)
	assert.NotContains(t, s, "\xff")
	assert.Contains(t, s, "bad")
	assert.Contains(t, s, "bytes")
}

func TestSanitizeValuePassthrough(t *testing.T) {
	assert.Equal(t, int64(42), sanitizeValue(int64(42)))
	assert.Equal(t, 1.5, sanitizeValue(1.5))
	assert.Nil(t, sanitizeValue(nil))
	assert.Equal(t, "clean", sanitizeValue("clean"))
}

func TestSanitizeRow(t *testing.T) {
	row := map[string]any{
		"name":  []byte{0xE9},
		"count": int64(3),
	}
	sanitizeRow(row)
	assert.Equal(t, "é", row["name"])
	assert.Equal(t, int64(3), row["count"])
}
