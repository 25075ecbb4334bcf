package bitstream

import (
	"fmt"
	"strings"

	"github.com/adlasm/adlasm/asm"
	"github.com/adlasm/adlasm/operand"
	"github.com/adlasm/adlasm/spec"
)

// Generator turns a parsed program into its final byte stream. Addresses are
// assigned from the image base; label placeholders are rewritten in place on
// the tree, so running the generator twice over the same tree is a no-op the
// second time around.
type Generator struct {
	grammar   *spec.Grammar
	registry  *operand.Registry
	nodes     []*asm.Node
	imagebase uint32
}

// NewGenerator creates a generator over the parsed tree.
func NewGenerator(grammar *spec.Grammar, registry *operand.Registry, nodes []*asm.Node, imagebase uint32) *Generator {
	return &Generator{
		grammar:   grammar,
		registry:  registry,
		nodes:     nodes,
		imagebase: imagebase,
	}
}

// Bytes runs the three passes and returns the packed byte stream.
//
// Pass 1 composes every instruction's bit layout, assigns it an address and
// records label addresses. Pass 2 rewrites label placeholders into concrete
// bits using the operand registry. Pass 3 recomposes each layout (now fully
// constant) and concatenates.
func (g *Generator) Bytes() ([]byte, error) {
	labelAddrs := make(map[string]uint32)
	current := g.imagebase

	for _, node := range g.nodes {
		fields, err := g.computeNodeBitfields(node)
		if err != nil {
			return nil, err
		}
		node.Address = current
		for _, label := range node.Labels {
			labelAddrs[label] = node.Address
		}
		current += byteLength(len(concatBits(fields)))
	}

	for _, node := range g.nodes {
		if err := g.updateLabelPlaceholders(node, node, labelAddrs); err != nil {
			return nil, err
		}
	}

	var all strings.Builder
	for _, node := range g.nodes {
		fields, err := g.computeNodeBitfields(node)
		if err != nil {
			return nil, err
		}
		all.WriteString(concatBits(fields))
	}

	return PackBits(all.String()), nil
}

// NodeLayout pairs a top-level node with its composed bit layout and bytes.
// Used by the bitstream debug dump and the inspector.
type NodeLayout struct {
	Node   *asm.Node
	Fields []Bitfield
	Bytes  []byte
}

// Layouts runs the full pipeline and returns the per-instruction layouts.
func (g *Generator) Layouts() ([]NodeLayout, error) {
	if _, err := g.Bytes(); err != nil {
		return nil, err
	}

	layouts := make([]NodeLayout, 0, len(g.nodes))
	for _, node := range g.nodes {
		fields, err := g.computeNodeBitfields(node)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, NodeLayout{
			Node:   node,
			Fields: fields,
			Bytes:  PackBits(concatBits(fields)),
		})
	}
	return layouts, nil
}

// computeNodeBitfields composes the bit layout of one instruction by applying
// the modifiers of the node and all its descendants to a fresh slot array.
func (g *Generator) computeNodeBitfields(node *asm.Node) ([]Bitfield, error) {
	fields := make([]Bitfield, len(g.grammar.Bitfields))
	for i, def := range g.grammar.Bitfields {
		fields[i] = Bitfield{Name: def.Name, Width: def.Width}
	}
	if err := g.setBitfields(fields, node); err != nil {
		return nil, err
	}
	return fields, nil
}

func (g *Generator) setBitfields(fields []Bitfield, node *asm.Node) error {
	for _, mod := range node.Modifiers {
		idx, ok := g.grammar.BitfieldIndex(mod.Bitfield)
		if !ok {
			return fmt.Errorf("bitstream: unknown bitfield %q", mod.Bitfield)
		}

		switch mod.Kind {
		case spec.ModifierConst:
			fields[idx].set(mod.Value)
		case spec.ModifierLabelPlaceholder:
			// Placeholder until the label addresses are known.
			fields[idx].set(strings.Repeat("0", fields[idx].Width))
		case spec.ModifierIntPlaceholder:
			return fmt.Errorf(
				"bitstream: unresolved int placeholder %q for bitfield %q: placeholders must be resolved during matching",
				mod.Value, mod.Bitfield)
		}
	}

	for _, child := range node.Children {
		if err := g.setBitfields(fields, child); err != nil {
			return err
		}
	}
	return nil
}

// updateLabelPlaceholders rewrites every LABEL_PH modifier of node (and its
// descendants) into a CONST, using the address of the containing top-level
// node as the source address.
func (g *Generator) updateLabelPlaceholders(top, node *asm.Node, labelAddrs map[string]uint32) error {
	for i := range node.Modifiers {
		mod := &node.Modifiers[i]
		if mod.Kind != spec.ModifierLabelPlaceholder {
			continue
		}
		typeName := mod.Value

		var labelName string
		found := false
		for _, child := range node.Children {
			if child.Kind == spec.AtomLabel && strings.HasPrefix(child.Value, typeName+" ") {
				labelName = child.Value[len(typeName)+1:]
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf(
				"bitstream line %d: label placeholder %q has no matching LABEL operand in the pattern",
				top.LineNum+1, typeName)
		}

		labelAddr, ok := labelAddrs[labelName]
		if !ok {
			return fmt.Errorf("bitstream line %d: unknown label %q", top.LineNum+1, labelName)
		}

		bits, err := g.registry.LabelBits(typeName, top.Address, labelAddr)
		if err != nil {
			return fmt.Errorf("bitstream line %d: %w", top.LineNum+1, err)
		}
		width, _ := g.grammar.BitfieldWidth(mod.Bitfield)
		if len(bits) == 0 || strings.Trim(bits, "01") != "" {
			return fmt.Errorf(
				"bitstream line %d: label computer for %q returned invalid bit string %q",
				top.LineNum+1, typeName, bits)
		}
		if len(bits) != width {
			return fmt.Errorf(
				"bitstream line %d: label computer for %q returned %d bits, but bitfield %q is %d bits wide",
				top.LineNum+1, typeName, len(bits), mod.Bitfield, width)
		}

		*mod = spec.Modifier{Kind: spec.ModifierConst, Bitfield: mod.Bitfield, Value: bits}
	}

	for _, child := range node.Children {
		if err := g.updateLabelPlaceholders(top, child, labelAddrs); err != nil {
			return err
		}
	}
	return nil
}

// DebugDump renders, for each instruction, its source line, the present
// bitfields with their values, and the padded bytes it emits.
func (g *Generator) DebugDump() (string, error) {
	layouts, err := g.Layouts()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, layout := range layouts {
		if layout.Node.SourceLine != "" {
			sb.WriteString(layout.Node.SourceLine)
			sb.WriteByte('\n')
		}

		var names, values []string
		for i := range layout.Fields {
			if layout.Fields[i].Present {
				names = append(names, layout.Fields[i].Name)
				values = append(values, layout.Fields[i].Value)
			}
		}
		for i := range names {
			// Pad each column to the wider of name and value.
			w := len(names[i])
			if len(values[i]) > w {
				w = len(values[i])
			}
			fmt.Fprintf(&sb, "%-*s  ", w, names[i])
		}
		sb.WriteByte('\n')
		for i := range values {
			w := len(names[i])
			if len(values[i]) > w {
				w = len(values[i])
			}
			fmt.Fprintf(&sb, "%-*s  ", w, values[i])
		}
		sb.WriteByte('\n')

		sb.WriteString("Bytes (padded):\n")
		for _, b := range layout.Bytes {
			fmt.Fprintf(&sb, "%02X ", b)
		}
		sb.WriteString("\n\n")
	}

	return sb.String(), nil
}
