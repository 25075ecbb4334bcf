package asm

import (
	"fmt"
	"strings"

	"github.com/adlasm/adlasm/operand"
	"github.com/adlasm/adlasm/parseutil"
	"github.com/adlasm/adlasm/spec"
)

// DefaultMaxMatchDepth bounds grammar recursion. The spec format cannot
// express left recursion safely, so a cyclic definition would otherwise
// recurse without consuming input until the stack overflows.
const DefaultMaxMatchDepth = 500

// matchType classifies the token buffer against a raw literal.
type matchType int

const (
	noMatch matchType = iota
	partialMatch
	exactMatch
)

// Parser matches assembly source lines against the grammar's INSTRUCTION
// definition. A Parser is good for one input; create a new one per file.
type Parser struct {
	// Sigma16Labels selects Sigma16-style label syntax: any line not
	// starting with whitespace begins with a label. The default style is
	// "name:" at column 0.
	Sigma16Labels bool
	// MaxMatchDepth overrides DefaultMaxMatchDepth when positive.
	MaxMatchDepth int

	grammar  *spec.Grammar
	registry *operand.Registry

	rawLines []string
	lineNum  int // 0-based
	line     string
	pos      int

	tokenBuffer string

	labels     map[int]string // source line -> label
	labelLines map[string]int // label -> defining source line

	nodes []*Node

	// Deepest-failure diagnostics for the current line.
	expectedStack  []string
	maxParsedDepth int
	errParsed      string
	errExpected    string
	errBad         string

	depth int
}

// NewParser creates a matcher over a validated grammar and its operand
// registry.
func NewParser(grammar *spec.Grammar, registry *operand.Registry) *Parser {
	return &Parser{
		grammar:    grammar,
		registry:   registry,
		labels:     make(map[int]string),
		labelLines: make(map[string]int),
	}
}

// Labels returns the label -> source line map collected by the label pass.
func (p *Parser) Labels() map[string]int {
	return p.labelLines
}

// Parse runs the two source passes (label collection, instruction matching)
// followed by label attachment, and returns the top-level tree nodes in
// source order.
func (p *Parser) Parse(input string) ([]*Node, error) {
	p.rawLines = strings.Split(input, "\n")
	p.nodes = nil

	if err := p.parseLabels(); err != nil {
		return nil, err
	}
	if err := p.parseProgram(); err != nil {
		return nil, err
	}
	if err := p.assignLabels(); err != nil {
		return nil, err
	}

	return p.nodes, nil
}

// skipSourceLine reports whether a line takes no part in parsing. Note the
// comment asymmetry: only lines whose first non-blank character is ';' are
// skipped here, but a trailing ';' comment after a complete instruction is
// accepted by the top-level rest-empty check.
func skipSourceLine(stripped string) bool {
	return len(stripped) == 0 || strings.HasPrefix(stripped, ";")
}

// parseLabels is pass A: collect one label per line, rejecting duplicates.
func (p *Parser) parseLabels() error {
	for p.lineNum = 0; p.lineNum < len(p.rawLines); p.lineNum++ {
		raw := p.rawLines[p.lineNum]
		p.line = strings.TrimSpace(raw)
		if skipSourceLine(p.line) {
			continue
		}

		label, ok := p.lineLabel(raw)
		if !ok {
			continue
		}
		if first, dup := p.labelLines[label]; dup {
			return &LabelError{
				Line:    p.lineNum + 1,
				Label:   label,
				Message: fmt.Sprintf("duplicate label (first defined on line %d)", first+1),
			}
		}
		p.labels[p.lineNum] = label
		p.labelLines[label] = p.lineNum
	}
	return nil
}

// lineLabel extracts the label on the current line, if any.
func (p *Parser) lineLabel(raw string) (string, bool) {
	if p.Sigma16Labels {
		if len(raw) == 0 || parseutil.IsSpace(raw[0]) {
			return "", false
		}
		label, _ := parseutil.ReadIdentifier(p.line, 0)
		return label, label != ""
	}

	if !strings.Contains(p.line, ":") {
		return "", false
	}
	label, pos := parseutil.ReadToken(p.line, 0, " :", parseutil.IsIdentifierChar)
	if ch, ok := parseutil.NextChar(p.line, pos); ok && ch == ':' && label != "" {
		return label, true
	}
	return "", false
}

// parseProgram is pass B: match every non-skipped line as an INSTRUCTION.
func (p *Parser) parseProgram() error {
	for p.lineNum = 0; p.lineNum < len(p.rawLines); p.lineNum++ {
		p.line = strings.TrimSpace(p.rawLines[p.lineNum])
		if skipSourceLine(p.line) {
			continue
		}
		if err := p.parseCurrentLine(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) parseCurrentLine() error {
	p.resetDiagnostics()
	p.resetTokenBuffer()
	p.pos = 0

	// Position the cursor past the label, if this line carries one.
	if label, ok := p.labels[p.lineNum]; ok {
		p.pos = len(label)
		if !p.Sigma16Labels {
			p.pos++ // the ':'
		}
		p.pos = parseutil.SkipWhitespace(p.line, p.pos)
		if p.pos == len(p.line) {
			// Label-only line; the label attaches to the next instruction.
			return nil
		}
	}

	node, err := p.parseInstruction()
	if err != nil {
		return err
	}
	node.SourceLine = p.line
	node.LineNum = p.lineNum
	p.nodes = append(p.nodes, node)
	return nil
}

// parseInstruction matches the start symbol as a top-level match.
func (p *Parser) parseInstruction() (*Node, error) {
	def, _ := p.grammar.Def(spec.StartSymbol)

	matched, children, mods, err := p.matchDefn(def, true)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, &ParseError{
			Line:     p.lineNum + 1,
			Parsed:   p.errParsed,
			Expected: p.errExpected,
			Got:      p.errBad,
		}
	}

	node := newNode(spec.AtomPlaceholder, spec.StartSymbol)
	node.Children = children
	node.Modifiers = mods
	return node, nil
}

// matchDefn tries a definition's alternatives in declaration order,
// snapshotting (cursor, token buffer, expected stack) before each attempt and
// restoring on failure.
func (p *Parser) matchDefn(def *spec.InstrDef, topLevel bool) (bool, []*Node, []spec.Modifier, error) {
	maxDepth := p.MaxMatchDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxMatchDepth
	}
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		return false, nil, nil, fmt.Errorf(
			"asm line %d: match depth %d exceeded in definition %q: the grammar is recursive",
			p.lineNum+1, maxDepth, def.Name)
	}

	for i := range def.Alts {
		alt := &def.Alts[i]

		savePos := p.pos
		saveBuffer := p.tokenBuffer
		saveStack := make([]string, len(p.expectedStack))
		copy(saveStack, p.expectedStack)

		matched, children, err := p.tryMatchPattern(alt.Atoms)
		if err != nil {
			return false, nil, nil, err
		}

		if topLevel && matched {
			// A top-level match must consume the whole line (bar a trailing
			// ';' comment).
			matched = p.restEmpty()
			if !matched {
				p.noteRestNotEmpty()
			}
		}

		if matched {
			mods, err := p.processIntPlaceholders(alt.Modifiers, children)
			if err != nil {
				return false, nil, nil, err
			}
			return true, children, mods, nil
		}

		p.pos = savePos
		p.tokenBuffer = saveBuffer
		p.expectedStack = saveStack
	}

	return false, nil, nil, nil
}

// tryMatchPattern matches every atom of one alternative in sequence.
func (p *Parser) tryMatchPattern(atoms []spec.Atom) (bool, []*Node, error) {
	var children []*Node

	for _, atom := range atoms {
		var (
			tokenMatch bool
			child      *Node
			err        error
		)

		p.pushExpected(atom)

		switch atom.Kind {
		case spec.AtomWhitespace:
			tokenMatch = p.tryMatchWhitespace()
		case spec.AtomRaw:
			tokenMatch, child = p.tryMatchRaw(atom.Value)
		case spec.AtomInt:
			tokenMatch, child, err = p.tryMatchInt(atom.Value)
		case spec.AtomLabel:
			tokenMatch, child = p.tryMatchLabel(atom.Value)
		case spec.AtomPlaceholder:
			var (
				sub      []*Node
				mods     []spec.Modifier
				subMatch bool
			)
			def, ok := p.grammar.Def(atom.Value)
			if !ok {
				return false, nil, fmt.Errorf("asm: placeholder %q has no definition", atom.Value)
			}
			subMatch, sub, mods, err = p.matchDefn(def, false)
			if subMatch {
				tokenMatch = true
				group := newNode(spec.AtomPlaceholder, atom.Value)
				group.Children = sub
				group.Modifiers = mods
				child = group
			}
		}
		if err != nil {
			return false, nil, err
		}

		if !tokenMatch {
			p.popExpected()
			return false, nil, nil
		}

		if child != nil {
			children = append(children, child)
		}
		p.resetTokenBuffer()
	}

	return true, children, nil
}

// readLineChar consumes one character from the line into the token buffer.
// Characters are folded to lower case unless the caller opts out, and a
// non-nil whitelist rejects (without consuming) characters outside it.
func (p *Parser) readLineChar(toLower bool, valid map[byte]bool) bool {
	ch, ok := parseutil.NextChar(p.line, p.pos)
	if !ok {
		return false
	}
	if valid != nil && !valid[ch] {
		return false
	}
	if toLower && ch >= 'A' && ch <= 'Z' {
		ch += 'a' - 'A'
	}
	p.tokenBuffer += string(ch)
	p.pos++
	return true
}

func (p *Parser) resetTokenBuffer() {
	p.tokenBuffer = ""
}

// matchToken classifies the token buffer against a literal.
func (p *Parser) matchToken(literal string) matchType {
	if len(literal) == 0 {
		return noMatch
	}
	if p.tokenBuffer == literal {
		return exactMatch
	}
	if strings.HasPrefix(literal, p.tokenBuffer) {
		return partialMatch
	}
	return noMatch
}

func (p *Parser) tryMatchWhitespace() bool {
	ch, ok := parseutil.NextChar(p.line, p.pos)
	if !ok || !parseutil.IsSpace(ch) {
		return false
	}
	p.pos = parseutil.SkipWhitespace(p.line, p.pos)
	return true
}

// tryMatchRaw reads characters while the buffer remains a strict prefix of
// the literal, stopping on an exact match or a mismatch.
func (p *Parser) tryMatchRaw(literal string) (bool, *Node) {
	if !p.readLineChar(true, nil) {
		return false, nil
	}
	mt := p.matchToken(literal)
	for mt == partialMatch {
		if !p.readLineChar(true, nil) {
			mt = noMatch
			break
		}
		mt = p.matchToken(literal)
	}
	if mt != exactMatch {
		return false, nil
	}
	return true, newNode(spec.AtomRaw, literal)
}

// tryMatchInt consumes characters from the operand type's whitelist and runs
// its validator over the result.
func (p *Parser) tryMatchInt(typeName string) (bool, *Node, error) {
	chars, err := p.registry.ValidChars(typeName)
	if err != nil {
		return false, nil, err
	}

	if !p.readLineChar(false, chars) {
		return false, nil, nil
	}
	for p.readLineChar(false, chars) {
	}

	ok, err := p.registry.ValidateInt(typeName, p.tokenBuffer)
	if err != nil {
		return false, nil, err
	}
	if !ok {
		return false, nil, nil
	}
	return true, newNode(spec.AtomInt, typeName+" "+p.tokenBuffer), nil
}

// tryMatchLabel reads an identifier and succeeds only if it is a label
// collected by pass A.
func (p *Parser) tryMatchLabel(typeName string) (bool, *Node) {
	if !p.readLineChar(false, nil) {
		return false, nil
	}
	if !parseutil.IsIdentifierChar(p.tokenBuffer[0]) {
		return false, nil
	}
	for {
		ch, ok := parseutil.NextChar(p.line, p.pos)
		if !ok || !parseutil.IsIdentifierChar(ch) {
			break
		}
		p.readLineChar(false, nil)
	}

	if _, known := p.labelLines[p.tokenBuffer]; !known {
		return false, nil
	}
	return true, newNode(spec.AtomLabel, typeName+" "+p.tokenBuffer)
}

// restEmpty consumes the remainder of the line, accepting whitespace and a
// trailing ';' comment only.
func (p *Parser) restEmpty() bool {
	for p.readLineChar(true, nil) {
		switch p.tokenBuffer[len(p.tokenBuffer)-1] {
		case ';':
			return true
		case ' ', '\t':
			continue
		default:
			return false
		}
	}
	return true
}

// processIntPlaceholders resolves INT_PH modifiers at the alternative's
// return site by running the operand emitter over the matching INT child.
// CONST modifiers pass through; LABEL_PH modifiers are left for the address
// resolver.
func (p *Parser) processIntPlaceholders(mods []spec.Modifier, children []*Node) ([]spec.Modifier, error) {
	if len(mods) == 0 {
		return nil, nil
	}

	processed := make([]spec.Modifier, 0, len(mods))
	for _, mod := range mods {
		switch mod.Kind {
		case spec.ModifierConst, spec.ModifierLabelPlaceholder:
			processed = append(processed, mod)

		case spec.ModifierIntPlaceholder:
			typeName := mod.Value
			var intChild *Node
			for _, child := range children {
				if child.Kind == spec.AtomInt && strings.HasPrefix(child.Value, typeName+" ") {
					intChild = child
					break
				}
			}
			if intChild == nil {
				return nil, fmt.Errorf(
					"asm line %d: int placeholder %q has no matching INT operand in the pattern",
					p.lineNum+1, typeName)
			}

			text := intChild.Value[len(typeName)+1:]
			bits, err := p.registry.EmitBits(typeName, text)
			if err != nil {
				return nil, fmt.Errorf("asm line %d: %w", p.lineNum+1, err)
			}
			if len(bits) == 0 || strings.Trim(bits, "01") != "" {
				return nil, fmt.Errorf(
					"asm line %d: emitter for %q returned invalid bit string %q for value %q",
					p.lineNum+1, typeName, bits, text)
			}
			width, ok := p.grammar.BitfieldWidth(mod.Bitfield)
			if !ok {
				return nil, fmt.Errorf("asm line %d: unknown bitfield %q", p.lineNum+1, mod.Bitfield)
			}
			if len(bits) != width {
				return nil, fmt.Errorf(
					"asm line %d: emitter for %q returned %d bits for value %q, but bitfield %q is %d bits wide",
					p.lineNum+1, typeName, len(bits), text, mod.Bitfield, width)
			}
			processed = append(processed, spec.Modifier{
				Kind:     spec.ModifierConst,
				Bitfield: mod.Bitfield,
				Value:    bits,
			})
		}
	}
	return processed, nil
}

// Deepest-failure diagnostics. Every atom attempt pushes its expected token;
// a failed attempt pops it, snapshotting the stack if it is the deepest seen
// on this line. The snapshot survives backtracking so the final error shows
// the most advanced failure, not the last one.

func (p *Parser) resetDiagnostics() {
	p.maxParsedDepth = 0
	p.expectedStack = p.expectedStack[:0]
	p.errParsed = ""
	p.errExpected = ""
	p.errBad = ""
}

func (p *Parser) pushExpected(atom spec.Atom) {
	switch atom.Kind {
	case spec.AtomRaw:
		p.expectedStack = append(p.expectedStack, "'"+atom.Value+"'")
	case spec.AtomWhitespace:
		p.expectedStack = append(p.expectedStack, "' '")
	case spec.AtomInt, spec.AtomLabel:
		p.expectedStack = append(p.expectedStack, atom.Value)
	case spec.AtomPlaceholder:
		p.expectedStack = append(p.expectedStack, "%"+atom.Value+"%")
	}
}

func (p *Parser) popExpected() {
	if len(p.expectedStack) > p.maxParsedDepth {
		p.buildErrorMessage()
	}
	p.expectedStack = p.expectedStack[:len(p.expectedStack)-1]
}

func (p *Parser) buildErrorMessage() {
	p.errExpected = p.expectedStack[len(p.expectedStack)-1]
	p.errBad = p.tokenBuffer + p.line[p.pos:]
	p.maxParsedDepth = len(p.expectedStack)
	p.errParsed = strings.Join(p.expectedStack[:len(p.expectedStack)-1], " ")
}

func (p *Parser) noteRestNotEmpty() {
	if len(p.expectedStack) > p.maxParsedDepth {
		p.errExpected = "<< rest of line should be empty >>"
		if len(p.tokenBuffer) > 0 {
			p.errBad = p.tokenBuffer[len(p.tokenBuffer)-1:] + p.line[p.pos:]
		} else {
			p.errBad = p.line[p.pos:]
		}
		p.maxParsedDepth = len(p.expectedStack)
		p.errParsed = strings.Join(p.expectedStack, " ")
	}
}
