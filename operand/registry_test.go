package operand_test

import (
	"testing"

	"github.com/adlasm/adlasm/operand"
)

func TestRegisterIntRequiresPrefix(t *testing.T) {
	r := operand.NewRegistry()
	err := r.RegisterInt("imm_8", &operand.IntType{
		Chars:    map[byte]bool{'0': true},
		Validate: func(string) bool { return true },
		Emit:     func(string) (string, error) { return "0", nil },
	})
	if err == nil {
		t.Fatal("expected registration of non-int_ name to fail")
	}
}

func TestRegisterIntRequiresCompleteTable(t *testing.T) {
	r := operand.NewRegistry()
	err := r.RegisterInt("int_8", &operand.IntType{
		Chars:    map[byte]bool{'0': true},
		Validate: func(string) bool { return true },
		// Emit missing
	})
	if err == nil {
		t.Fatal("expected registration without emitter to fail")
	}
}

func TestRegisterLabelRequiresPrefix(t *testing.T) {
	r := operand.NewRegistry()
	err := r.RegisterLabel("int_rel", &operand.LabelType{
		Bits: func(uint32, uint32) (string, error) { return "0", nil },
	})
	if err == nil {
		t.Fatal("expected registration of non-label_ name to fail")
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	r := operand.NewRegistry()
	typ := &operand.IntType{
		Chars:    map[byte]bool{'0': true},
		Validate: func(string) bool { return true },
		Emit:     func(string) (string, error) { return "0", nil },
	}
	if err := r.RegisterInt("int_x", typ); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.RegisterInt("int_x", typ); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestBuiltinTypesDefined(t *testing.T) {
	r, err := operand.Builtin()
	if err != nil {
		t.Fatalf("Builtin: %v", err)
	}

	for _, name := range []string{
		"int_32_bits", "int_16_bits", "int_8_bits",
		"label_x86_imm_32_bits", "label_x86_rel_32_bit_branch",
		"int_12_bits_constrained", "int_8_bits_absolute", "int_12_bits_offset",
		"int_sigma16_data", "label_sigma16",
	} {
		if !r.IsDefined(name) {
			t.Errorf("built-in type %q not defined", name)
		}
	}

	if r.IsDefined("int_does_not_exist") {
		t.Error("IsDefined returned true for unknown type")
	}
}
