package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "anything", tp.TruncateText("anything", 0))
	assert.Equal(t, "abc"+TruncationMarker, tp.TruncateText("abcdef", 3))

	// "ü" is two bytes; cutting inside it must back off to a rune boundary
	got := tp.TruncateText("aü", 2)
	assert.Equal(t, "a"+TruncationMarker, got)
	assert.True(t, utf8.ValidString(got))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "Grüße", tp.SanitizeUTF8("Grüße"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(nil)

	got := tp.ProcessText("  Hello\n\n\tworld \xff  again ", 0)
	assert.Equal(t, "Hello world again", got)

	long := strings.Repeat("x ", 500)
	got = tp.ProcessText(long, 300)
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
	assert.LessOrEqual(t, len(got), 300+len(TruncationMarker))
}
