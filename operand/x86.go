package operand

import (
	"fmt"
	"strconv"
	"strings"
)

// Built-in x86-32 operand types: plain sized immediates in decimal or
// MASM-style hex ("0...h"), emitted little-endian, plus the two label
// encodings used by 32-bit code (absolute immediate and rel32 branch).

const x86IntChars = "-0123456789abcdefABCDEFh"

// parseX86Int parses a decimal integer or a hex integer written as 0...h.
// A hex value must start with '0' and may not be negated.
func parseX86Int(text string) (int64, error) {
	if strings.HasSuffix(text, "h") {
		if strings.HasPrefix(text, "-") || !strings.HasPrefix(text, "0") {
			return 0, fmt.Errorf("malformed hex literal %q", text)
		}
		return strconv.ParseInt(text[1:len(text)-1], 16, 64)
	}
	return strconv.ParseInt(text, 10, 64)
}

func x86IntType(bits int) *IntType {
	lo := -(int64(1) << uint(bits-1))
	hi := int64(1)<<uint(bits) - 1
	return &IntType{
		Chars: charSet(x86IntChars),
		Validate: func(text string) bool {
			v, err := parseX86Int(text)
			return err == nil && v >= lo && v <= hi
		},
		Emit: func(text string) (string, error) {
			v, err := parseX86Int(text)
			if err != nil {
				return "", fmt.Errorf("operand: bad int_%d_bits value %q: %w", bits, text, err)
			}
			return littleEndianBits(v, bits), nil
		},
	}
}

func registerX86Types(r *Registry) error {
	for _, bits := range []int{32, 16, 8} {
		if err := r.RegisterInt(fmt.Sprintf("int_%d_bits", bits), x86IntType(bits)); err != nil {
			return err
		}
	}

	if err := r.RegisterLabel("label_x86_imm_32_bits", &LabelType{
		Bits: func(sourceAddr, labelAddr uint32) (string, error) {
			return littleEndianBits(int64(labelAddr), 32), nil
		},
	}); err != nil {
		return err
	}

	// rel32 branch operand: offset is relative to the end of the 5-byte
	// jmp/call instruction.
	return r.RegisterLabel("label_x86_rel_32_bit_branch", &LabelType{
		Bits: func(sourceAddr, labelAddr uint32) (string, error) {
			rel := int64(labelAddr) - int64(sourceAddr) - 5
			return littleEndianBits(rel, 32), nil
		},
	})
}
