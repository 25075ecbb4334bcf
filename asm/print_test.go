package asm_test

import (
	"strings"
	"testing"

	"github.com/adlasm/adlasm/asm"
)

func TestFormatTree(t *testing.T) {
	nodes := parseSource(t, movSpec, "mov r1\n")

	out := asm.FormatTree(nodes)

	for _, frag := range []string{
		"mov r1",       // original source line
		"INSTRUCTION",  // top-level node
		"'mov'",        // raw token child
		"REG",          // expanded placeholder
		"'r1'",         // matched register literal
		":: imm=1010",  // alternative's modifier
		":: op=0001",   // REG's modifier
	} {
		if !strings.Contains(out, frag) {
			t.Errorf("tree output missing %q:\n%s", frag, out)
		}
	}

	// Children are indented below their parent.
	instrLine := -1
	regLine := -1
	for i, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "INSTRUCTION") && instrLine == -1 {
			instrLine = i
		}
		if strings.HasPrefix(trimmed, "REG") && regLine == -1 {
			regLine = i
		}
	}
	if instrLine == -1 || regLine == -1 || regLine <= instrLine {
		t.Errorf("unexpected tree ordering (INSTRUCTION at %d, REG at %d)", instrLine, regLine)
	}
}
