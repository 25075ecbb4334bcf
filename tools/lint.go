// Package tools provides static analyzers over a loaded grammar and a parsed
// program: a grammar linter and a label cross-reference generator.
package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/adlasm/adlasm/spec"
)

// LintLevel represents the severity of a lint issue
type LintLevel int

const (
	LintError   LintLevel = iota // defects that will break assembly
	LintWarning                  // suspicious spec constructs
	LintInfo                     // style recommendations
)

func (l LintLevel) String() string {
	switch l {
	case LintError:
		return "error"
	case LintWarning:
		return "warning"
	case LintInfo:
		return "info"
	default:
		return "unknown"
	}
}

// LintIssue represents a single lint finding
type LintIssue struct {
	Level   LintLevel
	Line    int // spec file line of the definition involved (0 if grammar-wide)
	Message string
	Code    string // Issue code like "GRAMMAR_CYCLE", "UNREACHABLE_DEF"
}

func (i *LintIssue) String() string {
	return fmt.Sprintf("spec line %d: %s: %s [%s]", i.Line, i.Level, i.Message, i.Code)
}

// LintOptions controls linter behavior
type LintOptions struct {
	CheckUnreachable bool // definitions never reachable from INSTRUCTION
	CheckUnassigned  bool // bitfields no modifier ever assigns
	CheckShadowed    bool // alternatives hidden by an identical earlier one
}

// DefaultLintOptions returns default linter options
func DefaultLintOptions() *LintOptions {
	return &LintOptions{
		CheckUnreachable: true,
		CheckUnassigned:  true,
		CheckShadowed:    true,
	}
}

// Linter analyzes a loaded grammar for issues the spec parser accepts but
// that will bite at assembly time: definition cycles (unbounded recursion),
// unreachable definitions, bitfields that no modifier ever writes (silently
// shortened instructions), and shadowed alternatives.
type Linter struct {
	options *LintOptions
	issues  []*LintIssue
	grammar *spec.Grammar
}

// NewLinter creates a new linter
func NewLinter(options *LintOptions) *Linter {
	if options == nil {
		options = DefaultLintOptions()
	}
	return &Linter{
		options: options,
		issues:  make([]*LintIssue, 0),
	}
}

// Lint analyzes the given grammar
func (l *Linter) Lint(g *spec.Grammar) []*LintIssue {
	l.grammar = g

	l.checkCycles()

	if l.options.CheckUnreachable {
		l.checkUnreachable()
	}
	if l.options.CheckUnassigned {
		l.checkUnassignedFields()
	}
	if l.options.CheckShadowed {
		l.checkShadowedAlternatives()
	}

	sort.Slice(l.issues, func(i, j int) bool {
		if l.issues[i].Line == l.issues[j].Line {
			return l.issues[i].Code < l.issues[j].Code
		}
		return l.issues[i].Line < l.issues[j].Line
	})

	return l.issues
}

// HasErrors reports whether any issue is of error severity.
func (l *Linter) HasErrors() bool {
	for _, issue := range l.issues {
		if issue.Level == LintError {
			return true
		}
	}
	return false
}

// checkCycles detects definition cycles through placeholder references. The
// matcher only bounds recursion with a depth limit, so a cycle is reported
// here as an error with its full path.
func (l *Linter) checkCycles() {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int)

	var path []string
	var visit func(name string)
	visit = func(name string) {
		def, ok := l.grammar.Defs[name]
		if !ok {
			return
		}
		state[name] = visiting
		path = append(path, name)

		for _, alt := range def.Alts {
			for _, atom := range alt.Atoms {
				if atom.Kind != spec.AtomPlaceholder {
					continue
				}
				switch state[atom.Value] {
				case unvisited:
					visit(atom.Value)
				case visiting:
					// Report the cycle from the first occurrence on the path.
					start := 0
					for i, n := range path {
						if n == atom.Value {
							start = i
							break
						}
					}
					cycle := append(append([]string{}, path[start:]...), atom.Value)
					l.issues = append(l.issues, &LintIssue{
						Level:   LintError,
						Line:    def.Line,
						Message: fmt.Sprintf("definition cycle: %s", strings.Join(cycle, " -> ")),
						Code:    "GRAMMAR_CYCLE",
					})
				}
			}
		}

		path = path[:len(path)-1]
		state[name] = done
	}

	names := sortedDefNames(l.grammar)
	for _, name := range names {
		if state[name] == unvisited {
			visit(name)
		}
	}
}

// checkUnreachable warns about definitions the start symbol can never expand.
func (l *Linter) checkUnreachable() {
	reachable := map[string]bool{spec.StartSymbol: true}
	queue := []string{spec.StartSymbol}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		def, ok := l.grammar.Defs[name]
		if !ok {
			continue
		}
		for _, alt := range def.Alts {
			for _, atom := range alt.Atoms {
				if atom.Kind == spec.AtomPlaceholder && !reachable[atom.Value] {
					reachable[atom.Value] = true
					queue = append(queue, atom.Value)
				}
			}
		}
	}

	for _, name := range sortedDefNames(l.grammar) {
		if !reachable[name] {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintWarning,
				Line:    l.grammar.Defs[name].Line,
				Message: fmt.Sprintf("definition %q is never reachable from %s", name, spec.StartSymbol),
				Code:    "UNREACHABLE_DEF",
			})
		}
	}
}

// checkUnassignedFields warns about declared bitfields no modifier in the
// grammar ever assigns. Absent fields emit no bits, so a typo in a field
// name silently shortens every instruction.
func (l *Linter) checkUnassignedFields() {
	assigned := make(map[string]bool)
	for _, def := range l.grammar.Defs {
		for _, alt := range def.Alts {
			for _, mod := range alt.Modifiers {
				assigned[mod.Bitfield] = true
			}
		}
	}

	for _, field := range l.grammar.Bitfields {
		if !assigned[field.Name] {
			l.issues = append(l.issues, &LintIssue{
				Level:   LintWarning,
				Line:    0,
				Message: fmt.Sprintf("bitfield %q is declared but never assigned by any modifier", field.Name),
				Code:    "UNASSIGNED_FIELD",
			})
		}
	}
}

// checkShadowedAlternatives warns when an alternative repeats the exact atom
// sequence of an earlier one in the same definition; alternatives are tried
// in order, so the later one can never match.
func (l *Linter) checkShadowedAlternatives() {
	for _, name := range sortedDefNames(l.grammar) {
		def := l.grammar.Defs[name]
		seen := make(map[string]int)
		for i, alt := range def.Alts {
			key := atomKey(alt.Atoms)
			if first, dup := seen[key]; dup {
				l.issues = append(l.issues, &LintIssue{
					Level:   LintWarning,
					Line:    def.Line,
					Message: fmt.Sprintf("alternative %d of %q repeats the pattern of alternative %d and can never match", i+1, name, first+1),
					Code:    "SHADOWED_ALT",
				})
			} else {
				seen[key] = i
			}
		}
	}
}

func atomKey(atoms []spec.Atom) string {
	parts := make([]string, len(atoms))
	for i, atom := range atoms {
		parts[i] = fmt.Sprintf("%s(%s)", atom.Kind, atom.Value)
	}
	return strings.Join(parts, " ")
}

func sortedDefNames(g *spec.Grammar) []string {
	names := make([]string, 0, len(g.Defs))
	for name := range g.Defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
