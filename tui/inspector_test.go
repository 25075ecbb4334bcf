package tui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/adlasm/adlasm/asm"
	"github.com/adlasm/adlasm/bitstream"
	"github.com/adlasm/adlasm/operand"
	"github.com/adlasm/adlasm/spec"
)

const inspectorSpec = `
.BIT_FIELDS
name: op
size: 8
name: imm
size: 32
.ASM_INSTRUCTIONS
INSTRUCTION =
| nop ::op=10010000
| jmp label_x86_imm_32_bits ::op=11101001::imm=%label_x86_imm_32_bits%
;
`

const inspectorSource = "L: nop\njmp L\n"

// buildLayouts assembles a small two-instruction program for the inspector.
func buildLayouts(t *testing.T) []bitstream.NodeLayout {
	t.Helper()

	reg, err := operand.Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	g, err := spec.NewParser(reg).Parse(inspectorSpec)
	if err != nil {
		t.Fatalf("spec parse: %v", err)
	}
	p := asm.NewParser(g, reg)
	nodes, err := p.Parse(inspectorSource)
	if err != nil {
		t.Fatalf("asm parse: %v", err)
	}
	layouts, err := bitstream.NewGenerator(g, reg, nodes, 0x1000).Layouts()
	if err != nil {
		t.Fatalf("Layouts: %v", err)
	}
	return layouts
}

// newTestInspector creates an inspector over a simulation screen.
func newTestInspector(t *testing.T, layouts []bitstream.NodeLayout) *Inspector {
	t.Helper()

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("failed to init simulation screen: %v", err)
	}
	t.Cleanup(screen.Fini)

	return NewInspectorWithScreen(inspectorSource, layouts, screen)
}

func TestInspectorRefreshPopulatesViews(t *testing.T) {
	ins := newTestInspector(t, buildLayouts(t))
	ins.refresh()

	source := ins.SourceView.GetText(true)
	for _, frag := range []string{"L: nop", "jmp L"} {
		if !strings.Contains(source, frag) {
			t.Errorf("source view missing %q:\n%s", frag, source)
		}
	}

	tree := ins.TreeView.GetText(true)
	for _, frag := range []string{"INSTRUCTION", "'nop'"} {
		if !strings.Contains(tree, frag) {
			t.Errorf("tree view missing %q:\n%s", frag, tree)
		}
	}

	fields := ins.FieldsView.GetText(true)
	if !strings.Contains(fields, "op") || !strings.Contains(fields, "10010000") {
		t.Errorf("fields view missing op field:\n%s", fields)
	}
	// nop never assigns imm, so its slot shows as absent.
	if !strings.Contains(fields, "(absent)") {
		t.Errorf("fields view does not mark the absent field:\n%s", fields)
	}

	bytesText := ins.BytesView.GetText(true)
	if !strings.Contains(bytesText, "address 0x00001000") || !strings.Contains(bytesText, "90") {
		t.Errorf("bytes view = %q", bytesText)
	}

	status := ins.StatusBar.GetText(true)
	if !strings.Contains(status, "instruction 1/2") {
		t.Errorf("status bar = %q", status)
	}
}

func TestInspectorSelectInstruction(t *testing.T) {
	ins := newTestInspector(t, buildLayouts(t))
	ins.refresh()

	ins.selectInstruction(1)
	if ins.selected != 1 {
		t.Fatalf("selected = %d; want 1", ins.selected)
	}

	tree := ins.TreeView.GetText(true)
	if !strings.Contains(tree, "'jmp'") {
		t.Errorf("tree view not showing second instruction:\n%s", tree)
	}
	bytesText := ins.BytesView.GetText(true)
	if !strings.Contains(bytesText, "address 0x00001001") || !strings.Contains(bytesText, "E9") {
		t.Errorf("bytes view = %q", bytesText)
	}
	status := ins.StatusBar.GetText(true)
	if !strings.Contains(status, "instruction 2/2") {
		t.Errorf("status bar = %q", status)
	}
}

func TestInspectorSelectionBounds(t *testing.T) {
	ins := newTestInspector(t, buildLayouts(t))
	ins.refresh()

	// Out-of-range selections leave the current instruction alone.
	ins.selectInstruction(-1)
	if ins.selected != 0 {
		t.Errorf("selected = %d after selecting -1; want 0", ins.selected)
	}
	ins.selectInstruction(2)
	if ins.selected != 0 {
		t.Errorf("selected = %d after selecting past the end; want 0", ins.selected)
	}
}

func TestInspectorEmptyProgram(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("failed to init simulation screen: %v", err)
	}
	t.Cleanup(screen.Fini)

	ins := NewInspectorWithScreen("", nil, screen)
	ins.refresh()

	if tree := ins.TreeView.GetText(true); !strings.Contains(tree, "no instructions") {
		t.Errorf("tree view = %q; want a no-instructions notice", tree)
	}
	if status := ins.StatusBar.GetText(true); !strings.Contains(status, "0/0") {
		t.Errorf("status bar = %q; want 0/0", status)
	}
}
