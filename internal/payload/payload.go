package payload

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSizeFormat is returned when a payload size string cannot be parsed
var ErrInvalidSizeFormat = errors.New("invalid size format")

// FillerByte is the byte repeated to build generated payloads
const FillerByte = 'A'

const (
	kib = 1024
	mib = 1024 * 1024
)

// MaxSize is the largest accepted payload size
const MaxSize = 1024 * mib

// ParseSize converts a human size string ("500B", "10KB", "1MB", "2048") to a byte count.
// Suffixes are case-insensitive; a bare number is taken as bytes. Empty input yields 0.
// Sizes above MaxSize are rejected.
func ParseSize(text string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return 0, nil
	}

	multiplier := 1
	switch {
	case strings.HasSuffix(s, "MB"):
		multiplier = mib
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = kib
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || !(value >= 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSizeFormat, text)
	}

	size := value * float64(multiplier)
	if size > MaxSize {
		return 0, fmt.Errorf("%w: %q exceeds %d MB", ErrInvalidSizeFormat, text, MaxSize/mib)
	}
	return int(size), nil
}

// Build returns n filler bytes
func Build(n int) []byte {
	if n <= 0 {
		return nil
	}
	return bytes.Repeat([]byte{FillerByte}, n)
}

// Describe renders a byte count the way the startup banner shows it
func Describe(n int) string {
	switch {
	case n >= mib:
		return fmt.Sprintf("%.2f MB", float64(n)/mib)
	case n >= kib:
		return fmt.Sprintf("%.2f KB", float64(n)/kib)
	default:
		return fmt.Sprintf("%d Bytes", n)
	}
}
