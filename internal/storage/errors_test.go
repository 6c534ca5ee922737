package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstringClassifier(t *testing.T) {
	c := NewSubstringClassifier()

	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ClassPermanent},
		{"connection reset", errors.New("connection reset by peer"), ClassTransient},
		{"closed", errors.New("driver: bad connection (closed)"), ClassTransient},
		{"ssl uppercase", errors.New("SSL connection has been closed unexpectedly"), ClassTransient},
		{"eof", errors.New("unexpected EOF"), ClassTransient},
		{"unsuccessful", errors.New("unsuccessful or closed pending query result"), ClassTransient},
		{"broken pipe", errors.New("write: broken pipe"), ClassTransient},
		{"data file list", errors.New("IO Error: failed to get data file list"), ClassTransient},
		{"syntax error", errors.New("syntax error at or near \"FORM\""), ClassPermanent},
		{"constraint", errors.New("duplicate key violates unique constraint"), ClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.err))
		})
	}
}

func TestSubstringClassifierCustomPatterns(t *testing.T) {
	c := &SubstringClassifier{Patterns: []string{"deadlock"}}
	assert.Equal(t, ClassTransient, c.Classify(errors.New("deadlock detected")))
	assert.Equal(t, ClassPermanent, c.Classify(errors.New("connection reset")))
}
