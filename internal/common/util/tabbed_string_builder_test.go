package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTabbedStringBuilderAlignsColumns(t *testing.T) {
	sb := NewTabbedStringBuilder(1, 0, 2, ' ', 0)
	sb.Writef("a\tb\tc\n")
	sb.Writef("aaa\tbbb\tccc\n")
	assert.Equal(t, "a    b    c\naaa  bbb  ccc\n", sb.String())
}

func TestTabbedStringBuilderEmpty(t *testing.T) {
	sb := NewTabbedStringBuilder(1, 0, 2, ' ', 0)
	assert.Equal(t, "", sb.String())
}
