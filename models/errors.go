package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound wird zurückgegeben, wenn ein angefragter Datensatz nicht existiert.
var ErrNotFound = errors.New("not found")

// ValidationError beschreibt ungültige Eingaben (leerer Name, unbekannter Typ, Konfidenz außerhalb [0,1] ...).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RateLimitError signalisiert, dass ein externer Dienst gedrosselt hat. Wiederholbar.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return "rate limited"
	}
	return "rate limited: " + e.Err.Error()
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ExhaustedRetriesError wird nach dem letzten fehlgeschlagenen Versuch zurückgegeben.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Err }

// InvalidLinkError beschreibt einen abgelehnten Alias-Link (Selbstlink, Kette, stilles Überschreiben).
type InvalidLinkError struct {
	AliasID     uint
	CanonicalID uint
	Reason      string
}

func (e *InvalidLinkError) Error() string {
	return fmt.Sprintf("cannot link entity %d to %d: %s", e.AliasID, e.CanonicalID, e.Reason)
}

// IsValidation meldet, ob err (oder ein eingewickelter Fehler) ein ValidationError ist.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRateLimit meldet, ob err ein RateLimitError ist.
func IsRateLimit(err error) bool {
	var re *RateLimitError
	return errors.As(err, &re)
}
