package storage

import "strings"

// ErrorClass is the outcome of classifying an engine error.
type ErrorClass int

const (
	// ClassPermanent errors are never retried.
	ClassPermanent ErrorClass = iota
	// ClassTransient errors indicate a broken connection; the manager
	// reconnects and retries.
	ClassTransient
)

// ErrorClassifier decides whether an engine error is recoverable by
// reconnecting. The policy is injectable so embedders can prefer structured
// error codes from their engine version over substring matching.
type ErrorClassifier interface {
	Classify(err error) ErrorClass
}

// ConnectionErrorPatterns is the fixed substring set identifying
// connection-class failures in engine error text. Matching is
// case-insensitive.
var ConnectionErrorPatterns = []string{
	"connection",
	"closed",
	"ssl",
	"eof",
	"unsuccessful",
	"broken pipe",
	"failed to get data file list",
}

// SubstringClassifier classifies errors by matching their text against a
// pattern list. It is the default, last-resort policy.
type SubstringClassifier struct {
	Patterns []string
}

// NewSubstringClassifier returns a classifier over ConnectionErrorPatterns.
func NewSubstringClassifier() *SubstringClassifier {
	return &SubstringClassifier{Patterns: ConnectionErrorPatterns}
}

// Classify reports ClassTransient when the error text contains any pattern.
func (c *SubstringClassifier) Classify(err error) ErrorClass {
	if err == nil {
		return ClassPermanent
	}
	msg := strings.ToLower(err.Error())
	for _, p := range c.Patterns {
		if strings.Contains(msg, p) {
			return ClassTransient
		}
	}
	return ClassPermanent
}

// NotInitializedError is returned when the manager is used before Open or
// after Close.
type NotInitializedError struct{}

func (e *NotInitializedError) Error() string {
	return "storage manager not initialized"
}
