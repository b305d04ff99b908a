package controllers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestCloseReasonKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", closeReason("short"))

	ascii := strings.Repeat("a", 200)
	assert.Equal(t, ascii[:maxCloseReason], closeReason(ascii))

	// 122 single-byte characters put the two-byte "é" across the limit
	mixed := strings.Repeat("a", maxCloseReason-1) + "é" + "tail"
	got := closeReason(mixed)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxCloseReason-1), got)

	wide := strings.Repeat("界", 60)
	got = closeReason(wide)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxCloseReason)
	assert.Equal(t, 41*len("界"), len(got))
}
