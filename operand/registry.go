// Package operand implements the operand type registry, the assembler's only
// extension surface. An architecture's numeric and label operand encodings
// are supplied as named function tables: "int_" types parse and emit integer
// operands, "label_" types turn resolved label addresses into bit strings.
package operand

import (
	"fmt"
	"strings"
)

// IntPrefix and LabelPrefix are the mandatory operand type name prefixes.
const (
	IntPrefix   = "int_"
	LabelPrefix = "label_"
)

// IntType describes a numeric operand type.
type IntType struct {
	// Chars is the set of characters the matcher may consume for this type.
	Chars map[byte]bool
	// Validate reports whether the consumed text is a well-formed operand.
	Validate func(text string) bool
	// Emit returns the operand's bit string ('0'/'1' characters).
	Emit func(text string) (string, error)
}

// LabelType describes a label operand type.
type LabelType struct {
	// Bits computes the bit string encoding a label reference, given the
	// address of the referencing instruction and the label's address.
	Bits func(sourceAddr, labelAddr uint32) (string, error)
}

// Registry holds all loaded operand types. It is populated once at startup
// and read-only afterwards.
type Registry struct {
	ints   map[string]*IntType
	labels map[string]*LabelType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ints:   make(map[string]*IntType),
		labels: make(map[string]*LabelType),
	}
}

// RegisterInt adds a numeric operand type. The name must begin with "int_"
// and the table must be complete.
func (r *Registry) RegisterInt(name string, t *IntType) error {
	if !strings.HasPrefix(name, IntPrefix) {
		return fmt.Errorf("operand: int type %q must be named with prefix %q", name, IntPrefix)
	}
	if t == nil || t.Chars == nil || t.Validate == nil || t.Emit == nil {
		return fmt.Errorf("operand: int type %q is missing a character set, validator or emitter", name)
	}
	if r.IsDefined(name) {
		return fmt.Errorf("operand: duplicate operand type %q", name)
	}
	r.ints[name] = t
	return nil
}

// RegisterLabel adds a label operand type. The name must begin with "label_".
func (r *Registry) RegisterLabel(name string, t *LabelType) error {
	if !strings.HasPrefix(name, LabelPrefix) {
		return fmt.Errorf("operand: label type %q must be named with prefix %q", name, LabelPrefix)
	}
	if t == nil || t.Bits == nil {
		return fmt.Errorf("operand: label type %q is missing its bit computer", name)
	}
	if r.IsDefined(name) {
		return fmt.Errorf("operand: duplicate operand type %q", name)
	}
	r.labels[name] = t
	return nil
}

// IsDefined reports whether name is a registered operand type of either kind.
func (r *Registry) IsDefined(name string) bool {
	if _, ok := r.ints[name]; ok {
		return true
	}
	_, ok := r.labels[name]
	return ok
}

// ValidChars returns the character whitelist of an int type.
func (r *Registry) ValidChars(name string) (map[byte]bool, error) {
	t, ok := r.ints[name]
	if !ok {
		return nil, fmt.Errorf("operand: unknown int type %q", name)
	}
	return t.Chars, nil
}

// ValidateInt runs the validator of an int type over text.
func (r *Registry) ValidateInt(name, text string) (bool, error) {
	t, ok := r.ints[name]
	if !ok {
		return false, fmt.Errorf("operand: unknown int type %q", name)
	}
	return t.Validate(text), nil
}

// EmitBits runs the emitter of an int type over text.
func (r *Registry) EmitBits(name, text string) (string, error) {
	t, ok := r.ints[name]
	if !ok {
		return "", fmt.Errorf("operand: unknown int type %q", name)
	}
	return t.Emit(text)
}

// LabelBits runs the bit computer of a label type.
func (r *Registry) LabelBits(name string, sourceAddr, labelAddr uint32) (string, error) {
	t, ok := r.labels[name]
	if !ok {
		return "", fmt.Errorf("operand: unknown label type %q", name)
	}
	return t.Bits(sourceAddr, labelAddr)
}

// Builtin returns a registry loaded with all built-in type sets
// (x86, ARM and Sigma16).
func Builtin() (*Registry, error) {
	r := NewRegistry()
	for _, load := range []func(*Registry) error{
		registerX86Types,
		registerARMTypes,
		registerSigma16Types,
	} {
		if err := load(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// charSet builds a whitelist map from the characters of s.
func charSet(s string) map[byte]bool {
	m := make(map[byte]bool, len(s))
	for i := 0; i < len(s); i++ {
		m[s[i]] = true
	}
	return m
}
