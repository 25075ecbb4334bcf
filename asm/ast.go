// Package asm matches assembly source against a loaded grammar, producing an
// annotated parse tree. Matching is a recursive descent over the grammar's
// pattern alternatives with explicit state snapshot and restore, driven one
// character at a time through a token buffer.
package asm

import "github.com/adlasm/adlasm/spec"

// Node is one node of the annotated parse tree. Top-level nodes (one per
// parsed source line) are PLACEHOLDER nodes named "INSTRUCTION" and
// additionally carry the original source line, its 0-based line number, any
// attached labels, and (after address assignment) their address.
type Node struct {
	Kind      spec.AtomKind
	Value     string
	Children  []*Node
	Modifiers []spec.Modifier

	SourceLine string
	LineNum    int // 0-based; -1 when not a top-level node
	Labels     []string
	Address    uint32
}

func newNode(kind spec.AtomKind, value string) *Node {
	return &Node{Kind: kind, Value: value, LineNum: -1}
}
