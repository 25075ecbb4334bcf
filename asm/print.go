package asm

import (
	"strings"

	"github.com/adlasm/adlasm/spec"
)

const printIndentStep = 4

// FormatTree renders the parse tree as indented text, with each node's
// bitfield modifiers aligned in a column to the right. The tree is rendered
// twice: the first pass only measures the longest line so the modifier
// column clears every node.
func FormatTree(nodes []*Node) string {
	f := &treeFormatter{}
	f.render(nodes)

	longest := 0
	for _, line := range f.lines {
		if len(line) > longest {
			longest = len(line)
		}
	}
	f.column = longest + (printIndentStep - longest%printIndentStep) + printIndentStep

	f.lines = f.lines[:0]
	f.render(nodes)

	return strings.Join(f.lines, "\n")
}

type treeFormatter struct {
	lines  []string
	column int
}

func (f *treeFormatter) render(nodes []*Node) {
	for _, node := range nodes {
		f.renderNode(node, 0)
		f.lines = append(f.lines, "")
	}
}

func (f *treeFormatter) renderNode(node *Node, indent int) {
	if node.SourceLine != "" {
		f.lines = append(f.lines, strings.Repeat(" ", indent)+node.SourceLine)
	}

	switch node.Kind {
	case spec.AtomWhitespace:
		return

	case spec.AtomRaw, spec.AtomInt, spec.AtomLabel:
		row := strings.Repeat(" ", indent) + "'" + node.Value + "'"
		f.lines = append(f.lines, row+f.padding(len(row))+formatModifiers(node))

	case spec.AtomPlaceholder:
		row := strings.Repeat(" ", indent) + node.Value
		f.lines = append(f.lines, row+f.padding(len(row))+formatModifiers(node))
		for _, child := range node.Children {
			f.renderNode(child, indent+printIndentStep)
		}
	}
}

func (f *treeFormatter) padding(current int) string {
	if current < f.column {
		return strings.Repeat(" ", f.column-current)
	}
	return strings.Repeat(" ", printIndentStep)
}

func formatModifiers(node *Node) string {
	var sb strings.Builder
	for _, mod := range node.Modifiers {
		sb.WriteString(":: ")
		switch mod.Kind {
		case spec.ModifierConst:
			sb.WriteString(mod.Bitfield + "=" + mod.Value)
		case spec.ModifierIntPlaceholder, spec.ModifierLabelPlaceholder:
			sb.WriteString(mod.Bitfield + "=%" + mod.Value + "%")
		}
		sb.WriteString(" ")
	}
	return sb.String()
}
