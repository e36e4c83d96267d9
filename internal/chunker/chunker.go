// Package chunker splits normalized page text into overlapping
// fixed-size word windows for semantic indexing.
package chunker

import (
	"errors"
	"strings"
)

const (
	DefaultWindow  = 500
	DefaultOverlap = 50
)

var ErrInvalidParameter = errors.New("chunker: overlap must be non-negative and smaller than window")

// Split breaks text into windows of `window` whitespace-separated
// words, each window starting window-overlap words after the previous
// one. The final window may be shorter. Empty or whitespace-only text
// yields no chunks, which callers treat as a soft condition rather
// than a failure. Deterministic for a given input.
func Split(text string, window, overlap int) ([]string, error) {
	if overlap < 0 || overlap >= window {
		return nil, ErrInvalidParameter
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	step := window - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + window
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks, nil
}
