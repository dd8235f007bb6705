package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountEmpty(t *testing.T) {
	assert.Equal(t, 0, Count(""))
}

func TestCountIsPositiveAndMonotonic(t *testing.T) {
	short := Count("hello there")
	long := Count("hello there, this is a much longer message with many more words in it")
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short, "expected longer text to have more tokens")
}

func TestWordCountFallback(t *testing.T) {
	// Directly exercise the fallback formula: ceil(words * 1.3).
	assert.Equal(t, 7, wordCountFallback("one two three four five"))
}

func TestCountMessagesSumsWithOverhead(t *testing.T) {
	msgs := []string{"hi", "there"}
	total := CountMessages(msgs)
	expectMin := Count("hi") + Count("there") + 2*4
	assert.Equal(t, expectMin, total)
}
