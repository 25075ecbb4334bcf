package asm

import (
	"fmt"
	"strings"
)

// ParseError reports a source line no grammar alternative could match. It
// carries the deepest failure the matcher observed on that line: the tokens
// matched up to the failure point, the single token expected next, and the
// characters found instead.
type ParseError struct {
	Line     int // 1-based source line
	Parsed   string
	Expected string
	Got      string
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "asm line %d: unable to parse instruction\n", e.Line)
	fmt.Fprintf(&sb, "  parsed:   %s\n", e.Parsed)
	fmt.Fprintf(&sb, "  expected: %s\n", e.Expected)
	fmt.Fprintf(&sb, "  got:      %s", e.Got)
	return sb.String()
}

// LabelError reports a defect in label collection or attachment.
type LabelError struct {
	Line    int // 1-based source line
	Label   string
	Message string
}

func (e *LabelError) Error() string {
	return fmt.Sprintf("asm line %d: label %q: %s", e.Line, e.Label, e.Message)
}
