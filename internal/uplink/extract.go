package uplink

import "strings"

// Extract returns the slice of raw spanning the first '{' through the last '}'.
// The scan is positional and does not balance braces.
func Extract(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < 0 || end < start {
		return "", ErrExtractionFailure
	}
	return raw[start : end+1], nil
}
