// Package tui implements an interactive inspector over an assembled program:
// the source listing alongside the selected instruction's parse tree, its
// bitfield layout and the bytes it emits.
package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/adlasm/adlasm/asm"
	"github.com/adlasm/adlasm/bitstream"
)

// Inspector represents the text user interface for inspecting a program
type Inspector struct {
	// Core components
	App *tview.Application

	// Layout containers
	MainLayout *tview.Flex
	LeftPanel  *tview.Flex
	RightPanel *tview.Flex

	// View panels
	SourceView *tview.TextView
	TreeView   *tview.TextView
	FieldsView *tview.TextView
	BytesView  *tview.TextView
	StatusBar  *tview.TextView

	// State
	sourceLines []string
	layouts     []bitstream.NodeLayout
	selected    int
}

// NewInspector creates a new inspector over the assembled program
func NewInspector(source string, layouts []bitstream.NodeLayout) *Inspector {
	ins := &Inspector{
		App:         tview.NewApplication(),
		sourceLines: strings.Split(source, "\n"),
		layouts:     layouts,
		selected:    0,
	}

	ins.initializeViews()
	ins.buildLayout()
	ins.setupKeyBindings()

	return ins
}

// NewInspectorWithScreen creates an inspector rendering to the given screen.
// Tests pass a tcell simulation screen here to drive the inspector without a
// real terminal.
func NewInspectorWithScreen(source string, layouts []bitstream.NodeLayout, screen tcell.Screen) *Inspector {
	ins := NewInspector(source, layouts)
	ins.App.SetScreen(screen)
	return ins
}

// initializeViews creates all the view panels
func (t *Inspector) initializeViews() {
	// Source View
	t.SourceView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.SourceView.SetBorder(true).SetTitle(" Source ")

	// Parse Tree View
	t.TreeView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.TreeView.SetBorder(true).SetTitle(" Parse Tree ")

	// Bitfields View
	t.FieldsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.FieldsView.SetBorder(true).SetTitle(" Bitfields ")

	// Bytes View
	t.BytesView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false).
		SetWrap(true)
	t.BytesView.SetBorder(true).SetTitle(" Bytes ")

	// Status Bar
	t.StatusBar = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(false)
}

// buildLayout constructs the inspector layout
func (t *Inspector) buildLayout() {
	// Left panel: source listing
	t.LeftPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.SourceView, 0, 1, false)

	// Right panel: tree, fields, bytes
	t.RightPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.TreeView, 0, 2, false).
		AddItem(t.FieldsView, 0, 1, false).
		AddItem(t.BytesView, 6, 0, false)

	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.LeftPanel, 0, 1, false).
		AddItem(t.RightPanel, 0, 2, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 1, false).
		AddItem(t.StatusBar, 1, 0, false)
}

// setupKeyBindings installs the global key handlers
func (t *Inspector) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyUp:
			t.selectInstruction(t.selected - 1)
			return nil
		case tcell.KeyDown:
			t.selectInstruction(t.selected + 1)
			return nil
		case tcell.KeyEscape:
			t.App.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'q' {
				t.App.Stop()
				return nil
			}
		}
		return event
	})
}

func (t *Inspector) selectInstruction(idx int) {
	if idx < 0 || idx >= len(t.layouts) {
		return
	}
	t.selected = idx
	t.refresh()
}

// refresh redraws every panel for the selected instruction
func (t *Inspector) refresh() {
	t.updateSourceView()
	t.updateTreeView()
	t.updateFieldsView()
	t.updateBytesView()
	t.updateStatusBar()
}

func (t *Inspector) updateSourceView() {
	selectedLine := -1
	if len(t.layouts) > 0 {
		selectedLine = t.layouts[t.selected].Node.LineNum
	}

	var sb strings.Builder
	for i, line := range t.sourceLines {
		if i == selectedLine {
			fmt.Fprintf(&sb, "[black:yellow]%4d  %s[-:-]\n", i+1, tview.Escape(line))
		} else {
			fmt.Fprintf(&sb, "%4d  %s\n", i+1, tview.Escape(line))
		}
	}
	t.SourceView.SetText(sb.String())
	t.SourceView.ScrollTo(maxInt(0, selectedLine-5), 0)
}

func (t *Inspector) updateTreeView() {
	if len(t.layouts) == 0 {
		t.TreeView.SetText("(no instructions)")
		return
	}
	tree := asm.FormatTree([]*asm.Node{t.layouts[t.selected].Node})
	t.TreeView.SetText(tview.Escape(tree))
}

func (t *Inspector) updateFieldsView() {
	if len(t.layouts) == 0 {
		t.FieldsView.SetText("")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-12s %5s  %s\n", "field", "width", "value")
	for _, field := range t.layouts[t.selected].Fields {
		if field.Present {
			fmt.Fprintf(&sb, "%-12s %5d  %s\n", field.Name, field.Width, field.Value)
		} else {
			fmt.Fprintf(&sb, "[gray]%-12s %5d  (absent)[-]\n", field.Name, field.Width)
		}
	}
	t.FieldsView.SetText(sb.String())
}

func (t *Inspector) updateBytesView() {
	if len(t.layouts) == 0 {
		t.BytesView.SetText("")
		return
	}
	layout := t.layouts[t.selected]

	var sb strings.Builder
	fmt.Fprintf(&sb, "address 0x%08X\n", layout.Node.Address)
	for _, b := range layout.Bytes {
		fmt.Fprintf(&sb, "%02X ", b)
	}
	t.BytesView.SetText(sb.String())
}

func (t *Inspector) updateStatusBar() {
	current := 0
	if len(t.layouts) > 0 {
		current = t.selected + 1
	}
	t.StatusBar.SetText(fmt.Sprintf(
		" instruction %d/%d   Up/Down: select   q/Esc: quit",
		current, len(t.layouts)))
}

// Run starts the inspector and blocks until the user quits
func (t *Inspector) Run() error {
	t.refresh()
	return t.App.SetRoot(t.MainLayout, true).Run()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
