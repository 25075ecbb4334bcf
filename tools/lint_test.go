package tools_test

import (
	"strings"
	"testing"

	"github.com/adlasm/adlasm/operand"
	"github.com/adlasm/adlasm/spec"
	"github.com/adlasm/adlasm/tools"
)

func loadGrammar(t *testing.T, specText string) *spec.Grammar {
	t.Helper()
	reg, err := operand.Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}
	g, err := spec.NewParser(reg).Parse(specText)
	if err != nil {
		t.Fatalf("spec parse: %v", err)
	}
	return g
}

func issueCodes(issues []*tools.LintIssue) map[string]int {
	codes := make(map[string]int)
	for _, issue := range issues {
		codes[issue.Code]++
	}
	return codes
}

func TestLintCleanGrammar(t *testing.T) {
	g := loadGrammar(t, `
.BIT_FIELDS
name: op
size: 4
.ASM_INSTRUCTIONS
INSTRUCTION =
| nop ::op=1111
| mov %REG%
;
REG =
| r0 ::op=0000
;
`)

	linter := tools.NewLinter(nil)
	issues := linter.Lint(g)
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
	if linter.HasErrors() {
		t.Error("HasErrors on a clean grammar")
	}
}

func TestLintDetectsCycle(t *testing.T) {
	g := loadGrammar(t, `
.BIT_FIELDS
name: op
size: 4
.ASM_INSTRUCTIONS
INSTRUCTION =
| %A% ::op=1111
;
A =
| x %B%
;
B =
| y %A%
;
`)

	linter := tools.NewLinter(nil)
	issues := linter.Lint(g)
	codes := issueCodes(issues)
	if codes["GRAMMAR_CYCLE"] == 0 {
		t.Fatalf("expected a GRAMMAR_CYCLE issue, got %v", issues)
	}
	if !linter.HasErrors() {
		t.Error("cycle must be an error-severity issue")
	}

	var cycle *tools.LintIssue
	for _, issue := range issues {
		if issue.Code == "GRAMMAR_CYCLE" {
			cycle = issue
			break
		}
	}
	if !strings.Contains(cycle.Message, "->") {
		t.Errorf("cycle message %q does not show the path", cycle.Message)
	}
}

func TestLintDetectsUnreachableDef(t *testing.T) {
	g := loadGrammar(t, `
.BIT_FIELDS
name: op
size: 4
.ASM_INSTRUCTIONS
INSTRUCTION =
| nop ::op=1111
;
ORPHAN =
| unused ::op=0000
;
`)

	issues := tools.NewLinter(nil).Lint(g)
	codes := issueCodes(issues)
	if codes["UNREACHABLE_DEF"] != 1 {
		t.Errorf("expected 1 UNREACHABLE_DEF, got %v", issues)
	}
}

func TestLintDetectsUnassignedField(t *testing.T) {
	g := loadGrammar(t, `
.BIT_FIELDS
name: op
size: 4
name: ghost
size: 4
.ASM_INSTRUCTIONS
INSTRUCTION =
| nop ::op=1111
;
`)

	issues := tools.NewLinter(nil).Lint(g)
	codes := issueCodes(issues)
	if codes["UNASSIGNED_FIELD"] != 1 {
		t.Errorf("expected 1 UNASSIGNED_FIELD, got %v", issues)
	}
}

func TestLintDetectsShadowedAlternative(t *testing.T) {
	g := loadGrammar(t, `
.BIT_FIELDS
name: op
size: 4
.ASM_INSTRUCTIONS
INSTRUCTION =
| nop ::op=1111
| nop ::op=0000
;
`)

	issues := tools.NewLinter(nil).Lint(g)
	codes := issueCodes(issues)
	if codes["SHADOWED_ALT"] != 1 {
		t.Errorf("expected 1 SHADOWED_ALT, got %v", issues)
	}
}

func TestLintOptionsDisableChecks(t *testing.T) {
	g := loadGrammar(t, `
.BIT_FIELDS
name: op
size: 4
name: ghost
size: 4
.ASM_INSTRUCTIONS
INSTRUCTION =
| nop ::op=1111
;
`)

	issues := tools.NewLinter(&tools.LintOptions{}).Lint(g)
	if len(issues) != 0 {
		t.Errorf("all checks disabled but got %v", issues)
	}
}
