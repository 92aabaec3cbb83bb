package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultInvoicePrefix is used when no prefix is configured.
const DefaultInvoicePrefix = "INV"

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is a well-formed identifier produced by New.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// FormatInvoiceNumber returns an invoice number like "INV-001". Sequences
// past 999 widen naturally ("INV-1000").
func FormatInvoiceNumber(prefix string, seq int) string {
	if prefix == "" {
		prefix = DefaultInvoicePrefix
	}
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// ParseInvoiceNumber parses "INV-001" into its prefix and sequence.
func ParseInvoiceNumber(number string) (prefix string, seq int, err error) {
	i := strings.LastIndex(number, "-")
	if i <= 0 || i == len(number)-1 {
		return "", 0, fmt.Errorf("invalid invoice number format: %q", number)
	}

	seq, err = strconv.Atoi(number[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid sequence in invoice number %q: %w", number, err)
	}
	if seq <= 0 {
		return "", 0, fmt.Errorf("invalid sequence in invoice number %q", number)
	}
	return number[:i], seq, nil
}
