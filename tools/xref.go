package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adlasm/adlasm/asm"
	"github.com/adlasm/adlasm/spec"
)

// Reference represents a single reference to a label
type Reference struct {
	Line   int    // 1-based source line of the referencing instruction
	Type   string // label operand type used for the reference
	Source string // source line text
}

// LabelSymbol represents a label and all its references
type LabelSymbol struct {
	Name       string
	DefLine    int // 1-based source line of the definition
	Address    uint32
	HasAddress bool
	References []*Reference
}

// XRefGenerator generates label cross-reference information from a parsed
// program: where each label is defined, and every LABEL operand that refers
// to it.
type XRefGenerator struct {
	symbols map[string]*LabelSymbol
}

// NewXRefGenerator creates a new cross-reference generator
func NewXRefGenerator() *XRefGenerator {
	return &XRefGenerator{
		symbols: make(map[string]*LabelSymbol),
	}
}

// Generate collects definitions and references from the parsed tree. labels
// is the matcher's label -> 0-based line map.
func (x *XRefGenerator) Generate(nodes []*asm.Node, labels map[string]int) map[string]*LabelSymbol {
	for name, line := range labels {
		x.symbols[name] = &LabelSymbol{
			Name:       name,
			DefLine:    line + 1,
			References: make([]*Reference, 0),
		}
	}

	for _, node := range nodes {
		for _, label := range node.Labels {
			if sym, ok := x.symbols[label]; ok {
				sym.Address = node.Address
				sym.HasAddress = true
			}
		}
		x.collectReferences(node, node)
	}

	return x.symbols
}

// collectReferences walks one instruction's subtree for LABEL tokens.
func (x *XRefGenerator) collectReferences(top, node *asm.Node) {
	if node.Kind == spec.AtomLabel {
		// Token value is "<typename> <label>".
		if idx := strings.IndexByte(node.Value, ' '); idx > 0 {
			typeName, label := node.Value[:idx], node.Value[idx+1:]
			if sym, ok := x.symbols[label]; ok {
				sym.References = append(sym.References, &Reference{
					Line:   top.LineNum + 1,
					Type:   typeName,
					Source: top.SourceLine,
				})
			}
		}
	}
	for _, child := range node.Children {
		x.collectReferences(top, child)
	}
}

// GetUnusedSymbols returns all labels that are defined but never referenced
func (x *XRefGenerator) GetUnusedSymbols() []*LabelSymbol {
	unused := make([]*LabelSymbol, 0)
	for _, sym := range x.symbols {
		if len(sym.References) == 0 {
			unused = append(unused, sym)
		}
	}
	sort.Slice(unused, func(i, j int) bool {
		return unused[i].Name < unused[j].Name
	})
	return unused
}

// XRefReport generates a formatted cross-reference report
type XRefReport struct {
	symbols []*LabelSymbol
}

// NewXRefReport creates a new cross-reference report
func NewXRefReport(symbols map[string]*LabelSymbol) *XRefReport {
	sorted := make([]*LabelSymbol, 0, len(symbols))
	for _, sym := range symbols {
		sorted = append(sorted, sym)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	return &XRefReport{symbols: sorted}
}

// String generates a text report
func (r *XRefReport) String() string {
	var sb strings.Builder

	sb.WriteString("Label Cross-Reference\n")
	sb.WriteString("=====================\n\n")

	for _, sym := range r.symbols {
		sb.WriteString(fmt.Sprintf("%-30s", sym.Name))
		if sym.HasAddress {
			sb.WriteString(fmt.Sprintf(" [address=0x%08X]", sym.Address))
		}
		sb.WriteString("\n")

		sb.WriteString(fmt.Sprintf("  Defined:     line %d\n", sym.DefLine))

		if len(sym.References) == 0 {
			sb.WriteString("  Referenced:  (never)\n")
		} else {
			sb.WriteString(fmt.Sprintf("  Referenced:  %d time(s)\n", len(sym.References)))
			lines := make([]string, len(sym.References))
			for i, ref := range sym.References {
				lines[i] = fmt.Sprintf("%d (%s)", ref.Line, ref.Type)
			}
			sb.WriteString(fmt.Sprintf("    line(s): %s\n", strings.Join(lines, ", ")))
		}

		sb.WriteString("\n")
	}

	// Summary
	unused := 0
	for _, sym := range r.symbols {
		if len(sym.References) == 0 {
			unused++
		}
	}

	sb.WriteString("Summary\n")
	sb.WriteString("=======\n")
	sb.WriteString(fmt.Sprintf("Total labels:  %d\n", len(r.symbols)))
	sb.WriteString(fmt.Sprintf("Unused:        %d\n", unused))

	return sb.String()
}

// GenerateXRef is a convenience function to generate a cross-reference report
func GenerateXRef(nodes []*asm.Node, labels map[string]int) string {
	gen := NewXRefGenerator()
	symbols := gen.Generate(nodes, labels)
	return NewXRefReport(symbols).String()
}
