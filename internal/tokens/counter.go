// Package tokens implements TokenCounter (spec §4.1, §4.3): an
// approximate token count for context-budget decisions, using the
// gpt-3.5-turbo BPE when available and a cheap word-count heuristic as
// a fallback. Ported from original_source/utils/token_counter.py.
package tokens

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter wraps a lazily-initialized tiktoken encoding. The zero value
// is usable; the encoding is built on first use and reused thereafter.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

// Default is a package-level Counter for call sites that don't need
// their own instance (the encoding is read-only and safe to share).
var Default = &Counter{}

// Count returns the approximate token count of text. Falls back to
// ceil(words * 1.3) if the tiktoken encoding cannot be loaded, mirroring
// the original's except-ImportError/except-Exception fallback.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		c.enc, c.err = tiktoken.GetEncoding("cl100k_base")
	})
	if c.err != nil || c.enc == nil {
		return wordCountFallback(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Count counts text using the shared Default counter.
func Count(text string) int { return Default.Count(text) }

func wordCountFallback(text string) int {
	words := strings.Fields(text)
	n := float64(len(words)) * 1.3
	return int(n) + boolToInt(n != float64(int(n)))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CountMessages sums the token count of a list of message contents,
// each padded by a small per-message overhead to approximate role/
// delimiter tokens the way chat-completion APIs actually bill them.
func CountMessages(contents []string) int {
	const perMessageOverhead = 4
	total := 0
	for _, c := range contents {
		total += Count(c) + perMessageOverhead
	}
	return total
}
