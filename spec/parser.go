package spec

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adlasm/adlasm/operand"
	"github.com/adlasm/adlasm/parseutil"
)

// Parser reads an architecture description file. The registry is consulted at
// load time so that unknown operand types are rejected before any assembly
// source is touched.
type Parser struct {
	registry *operand.Registry
	lines    []string
	grammar  *Grammar

	parsedBitfields    bool
	parsedInstructions bool
}

// NewParser creates a spec parser over the given registry.
func NewParser(registry *operand.Registry) *Parser {
	return &Parser{registry: registry}
}

// ParseFile reads and parses the spec file at path.
func (p *Parser) ParseFile(path string) (*Grammar, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied spec path
	if err != nil {
		return nil, fmt.Errorf("spec: reading %s: %w", path, err)
	}
	return p.Parse(string(data))
}

// Parse parses the spec file contents and validates the resulting grammar.
func (p *Parser) Parse(input string) (*Grammar, error) {
	p.lines = strings.Split(input, "\n")
	p.grammar = newGrammar()
	p.parsedBitfields = false
	p.parsedInstructions = false

	lineNum := 0
	for lineNum < len(p.lines) {
		line := strings.TrimSpace(p.lines[lineNum])

		if skippable(line) {
			lineNum++
			continue
		}

		switch line {
		case ".BIT_FIELDS":
			if p.parsedBitfields {
				return nil, errf(lineNum+1, "duplicate .BIT_FIELDS directive")
			}
			next, err := p.parseBitfieldDefinitions(lineNum)
			if err != nil {
				return nil, err
			}
			p.parsedBitfields = true
			lineNum = next

		case ".ASM_INSTRUCTIONS":
			if p.parsedInstructions {
				return nil, errf(lineNum+1, "duplicate .ASM_INSTRUCTIONS directive")
			}
			if !p.parsedBitfields {
				return nil, errf(lineNum+1, ".ASM_INSTRUCTIONS must come after .BIT_FIELDS")
			}
			if err := p.parseInstructionDefinitions(lineNum); err != nil {
				return nil, err
			}
			p.parsedInstructions = true
			lineNum = len(p.lines)

		default:
			return nil, errf(lineNum+1, "unexpected content %q outside any directive", line)
		}
	}

	if !p.parsedBitfields {
		return nil, errf(0, ".BIT_FIELDS directive not found")
	}
	if !p.parsedInstructions {
		return nil, errf(0, ".ASM_INSTRUCTIONS directive not found")
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p.grammar, nil
}

func skippable(line string) bool {
	return len(line) == 0 || strings.HasPrefix(line, "//")
}

// parseBitfieldDefinitions parses name/size line pairs starting just after
// the .BIT_FIELDS directive, returning the line number of the
// .ASM_INSTRUCTIONS directive that ends the section.
func (p *Parser) parseBitfieldDefinitions(start int) (int, error) {
	lineNum := start + 1

	for lineNum < len(p.lines) {
		line := strings.TrimSpace(p.lines[lineNum])

		if skippable(line) {
			lineNum++
			continue
		}
		if line == ".ASM_INSTRUCTIONS" {
			return lineNum, nil
		}

		if lineNum+1 >= len(p.lines) {
			return 0, errf(lineNum+1, "end of file while reading bitfield size")
		}
		sizeLine := strings.TrimSpace(p.lines[lineNum+1])

		name, err := p.parseBitfieldName(line, lineNum)
		if err != nil {
			return 0, err
		}
		size, err := p.parseBitfieldSize(sizeLine, lineNum+1)
		if err != nil {
			return 0, err
		}

		if !p.grammar.addBitfield(BitfieldDef{Name: name, Width: size}) {
			return 0, errf(lineNum+1, "duplicate bitfield definition %q", name)
		}
		lineNum += 2
	}

	return 0, errf(0, ".ASM_INSTRUCTIONS directive not found after .BIT_FIELDS")
}

func (p *Parser) parseBitfieldName(line string, lineNum int) (string, error) {
	if !strings.HasPrefix(line, "name:") {
		return "", errf(lineNum+1, "bitfield definition must start with 'name:'")
	}
	pos := parseutil.SkipWhitespace(line, len("name:"))
	name, pos := parseutil.ReadIdentifier(line, pos)
	if name == "" {
		return "", errf(lineNum+1, "missing bitfield name")
	}
	if !parseutil.RestEmpty(line, pos) {
		return "", errf(lineNum+1, "extra characters after bitfield name")
	}
	return name, nil
}

func (p *Parser) parseBitfieldSize(line string, lineNum int) (int, error) {
	if !strings.HasPrefix(line, "size:") {
		return 0, errf(lineNum+1, "bitfield definition must continue with 'size:'")
	}
	pos := parseutil.SkipWhitespace(line, len("size:"))
	digits, pos := parseutil.ReadNumber(line, pos)
	if !parseutil.RestEmpty(line, pos) {
		return 0, errf(lineNum+1, "extra characters after bitfield size")
	}
	size, err := strconv.Atoi(digits)
	if err != nil || size <= 0 {
		return 0, errf(lineNum+1, "bitfield size %q is not a positive integer", digits)
	}
	return size, nil
}

// parseInstructionDefinitions parses instruction definitions from the
// .ASM_INSTRUCTIONS directive to the end of the file.
func (p *Parser) parseInstructionDefinitions(start int) error {
	lineNum := start + 1

	for lineNum < len(p.lines) {
		line := strings.TrimSpace(p.lines[lineNum])

		if skippable(line) {
			lineNum++
			continue
		}

		def, next, err := p.parseSingleDefinition(lineNum)
		if err != nil {
			return err
		}
		if _, exists := p.grammar.Defs[def.Name]; exists {
			return errf(lineNum+1, "duplicate instruction definition %q", def.Name)
		}
		p.grammar.Defs[def.Name] = def
		lineNum = next
	}

	return nil
}

// parseSingleDefinition parses one "NAME =" header, its pattern lines and
// the terminating ";". Returns the definition and the line just past it.
func (p *Parser) parseSingleDefinition(start int) (*InstrDef, int, error) {
	header := strings.TrimSpace(p.lines[start])

	name, err := p.parseDefinitionName(header, start)
	if err != nil {
		return nil, 0, err
	}
	def := &InstrDef{Name: name, Line: start + 1}

	lineNum := start + 1
	for lineNum < len(p.lines) {
		line := strings.TrimSpace(p.lines[lineNum])
		lineNum++

		if skippable(line) {
			continue
		}
		if line == ";" {
			if len(def.Alts) == 0 {
				return nil, 0, errf(start+1, "empty instruction definition %q", name)
			}
			return def, lineNum, nil
		}

		alt, err := p.parsePatternLine(line, lineNum-1)
		if err != nil {
			return nil, 0, err
		}
		def.Alts = append(def.Alts, *alt)
	}

	return nil, 0, errf(start+1, "instruction definition %q is not terminated with ';'", name)
}

func (p *Parser) parseDefinitionName(line string, lineNum int) (string, error) {
	name, pos := parseutil.ReadIdentifier(line, 0)
	if name == "" {
		return "", errf(lineNum+1, "unable to read definition identifier")
	}
	pos = parseutil.SkipWhitespace(line, pos)
	if ch, ok := parseutil.NextChar(line, pos); !ok || ch != '=' {
		return "", errf(lineNum+1, "expected '=' after definition identifier %q", name)
	}
	if !parseutil.RestEmpty(line, pos+1) {
		return "", errf(lineNum+1, "extra characters after '=' in definition %q", name)
	}
	return name, nil
}

// parsePatternLine parses one |-prefixed pattern line into atoms and
// modifiers. lineNum is 0-based.
func (p *Parser) parsePatternLine(line string, lineNum int) (*PatternAlt, error) {
	if line[0] != '|' {
		return nil, errf(lineNum+1, "expected ';' or '|', got %q", line)
	}

	alt := &PatternAlt{}
	pos := parseutil.SkipWhitespace(line, 1)

	for pos < len(line) {
		ch := line[pos]

		switch {
		case ch == '%':
			name, next := parseutil.ReadIdentifier(line, pos+1)
			end, ok := parseutil.NextChar(line, next)
			if name == "" || !ok || end != '%' {
				return nil, errf(lineNum+1, "placeholder must be an identifier terminated with '%%'")
			}
			alt.Atoms = append(alt.Atoms, Atom{Kind: AtomPlaceholder, Value: name})
			pos = next + 1

		case parseutil.IsSpace(ch):
			alt.Atoms = append(alt.Atoms, Atom{Kind: AtomWhitespace, Value: " "})
			pos = parseutil.SkipWhitespace(line, pos)

		case ch == ':':
			if next, ok := parseutil.NextChar(line, pos+1); !ok || next != ':' {
				return nil, errf(lineNum+1, "unexpected ':' character in pattern")
			}
			mods, err := p.parseModifiers(line[pos+2:], lineNum)
			if err != nil {
				return nil, err
			}
			alt.Modifiers = mods
			// Trailing whitespace before the modifier list is not an atom.
			if n := len(alt.Atoms); n > 0 && alt.Atoms[n-1].Kind == AtomWhitespace {
				alt.Atoms = alt.Atoms[:n-1]
			}
			return alt, nil

		case ch == ',' || ch == '[' || ch == ']':
			alt.Atoms = append(alt.Atoms, Atom{Kind: AtomRaw, Value: string(ch)})
			pos++

		default:
			token, next := parseutil.ReadToken(line, pos, " \t%[]:", nil)
			if token == "" {
				return nil, errf(lineNum+1, "unexpected character %q in pattern", ch)
			}
			atom, err := p.classifyToken(token, lineNum)
			if err != nil {
				return nil, err
			}
			alt.Atoms = append(alt.Atoms, atom)
			pos = next
		}
	}

	return alt, nil
}

// classifyToken decides whether a bare pattern token is an operand atom or a
// raw literal.
func (p *Parser) classifyToken(token string, lineNum int) (Atom, error) {
	switch {
	case strings.HasPrefix(token, operand.IntPrefix):
		if !p.registry.IsDefined(token) {
			return Atom{}, errf(lineNum+1, "int operand type %q is not registered", token)
		}
		return Atom{Kind: AtomInt, Value: token}, nil

	case strings.HasPrefix(token, operand.LabelPrefix):
		if !p.registry.IsDefined(token) {
			return Atom{}, errf(lineNum+1, "label operand type %q is not registered", token)
		}
		return Atom{Kind: AtomLabel, Value: token}, nil

	default:
		// Source characters are folded to lower case while matching, so an
		// upper-case literal could never match; reject it up front.
		if token != strings.ToLower(token) {
			return Atom{}, errf(lineNum+1, "raw token %q must be lower case", token)
		}
		return Atom{Kind: AtomRaw, Value: token}, nil
	}
}

// parseModifiers parses the ::-separated name=value list following a pattern.
func (p *Parser) parseModifiers(raw string, lineNum int) ([]Modifier, error) {
	var mods []Modifier
	for _, item := range strings.Split(raw, "::") {
		item = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\t' {
				return -1
			}
			return r
		}, item)

		mod, err := p.parseModifier(item, lineNum)
		if err != nil {
			return nil, err
		}
		mods = append(mods, mod)
	}
	return mods, nil
}

func (p *Parser) parseModifier(item string, lineNum int) (Modifier, error) {
	parts := strings.Split(item, "=")
	if len(parts) != 2 {
		return Modifier{}, errf(lineNum+1, "unable to parse bitfield modifier %q", item)
	}
	name, value := parts[0], parts[1]

	if _, ok := p.grammar.BitfieldIndex(name); !ok {
		return Modifier{}, errf(lineNum+1, "bitfield modifier assigns to unknown bitfield %q", name)
	}

	if strings.HasPrefix(value, "%") && strings.HasSuffix(value, "%") && len(value) >= 2 {
		typeName := value[1 : len(value)-1]
		switch {
		case strings.HasPrefix(typeName, operand.IntPrefix):
			if !p.registry.IsDefined(typeName) {
				return Modifier{}, errf(lineNum+1, "int placeholder %q is not a registered operand type", typeName)
			}
			return Modifier{Kind: ModifierIntPlaceholder, Bitfield: name, Value: typeName}, nil
		case strings.HasPrefix(typeName, operand.LabelPrefix):
			if !p.registry.IsDefined(typeName) {
				return Modifier{}, errf(lineNum+1, "label placeholder %q is not a registered operand type", typeName)
			}
			return Modifier{Kind: ModifierLabelPlaceholder, Bitfield: name, Value: typeName}, nil
		default:
			return Modifier{}, errf(lineNum+1, "unknown kind of modifier placeholder %q", value)
		}
	}

	if len(value) == 0 || strings.Trim(value, "01") != "" {
		return Modifier{}, errf(lineNum+1, "bitfield modifier value %q must be a string of 0s and 1s", value)
	}
	return Modifier{Kind: ModifierConst, Bitfield: name, Value: value}, nil
}

// validate checks cross-references once the whole file has been read.
func (p *Parser) validate() error {
	if _, ok := p.grammar.Defs[StartSymbol]; !ok {
		return errf(0, "%q instruction definition is not present", StartSymbol)
	}

	for _, def := range p.grammar.Defs {
		for _, alt := range def.Alts {
			for _, atom := range alt.Atoms {
				if atom.Kind != AtomPlaceholder {
					continue
				}
				if _, ok := p.grammar.Defs[atom.Value]; !ok {
					return errf(def.Line,
						"definition %q uses placeholder for undefined definition %q",
						def.Name, atom.Value)
				}
			}
		}
	}

	return nil
}
