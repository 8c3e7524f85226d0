package util

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// TabbedStringBuilder wraps a *tabwriter.Writer backed by a strings.Builder so
// callers can build tab-aligned report tables without error handling; a
// strings.Builder never fails to write.
type TabbedStringBuilder struct {
	sb     *strings.Builder
	writer *tabwriter.Writer
}

// NewTabbedStringBuilder creates a new TabbedStringBuilder. All parameters are
// equivalent to those defined in tabwriter.NewWriter.
func NewTabbedStringBuilder(minwidth, tabwidth, padding int, padchar byte, flags uint) *TabbedStringBuilder {
	sb := &strings.Builder{}
	return &TabbedStringBuilder{
		sb:     sb,
		writer: tabwriter.NewWriter(sb, minwidth, tabwidth, padding, padchar, flags),
	}
}

// Writef formats according to a format specifier and writes to the underlying writer.
func (t *TabbedStringBuilder) Writef(format string, a ...any) {
	_, _ = fmt.Fprintf(t.writer, format, a...)
}

// String returns the accumulated string, flushing the underlying writer first.
func (t *TabbedStringBuilder) String() string {
	_ = t.writer.Flush()
	return t.sb.String()
}
