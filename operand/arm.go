package operand

import (
	"fmt"
	"strconv"
	"strings"
)

// Built-in ARM operand types. Immediates are written "#n". The constrained
// 12-bit type implements the ARM data-processing immediate: an 8-bit base
// rotated right by twice a 4-bit rotation count; values that cannot be
// expressed that way are rejected by the validator.

const armIntChars = "-0123456789#"

func parseARMInt(text string) (int64, error) {
	if !strings.HasPrefix(text, "#") {
		return 0, fmt.Errorf("ARM immediate %q must start with '#'", text)
	}
	return strconv.ParseInt(text[1:], 10, 64)
}

// armRotatedImmediate encodes v as 4 rotation bits followed by 8 base bits,
// or fails if no 8-bit window of the 32-bit value holds all its set bits.
func armRotatedImmediate(v int64) (string, error) {
	bits := twosComplementBits(v, 32)

	for i := 0; i < 16; i++ {
		windowStart := i * 2
		windowEnd := windowStart + 8

		var inWindow, outsideWindow string
		if windowEnd >= len(bits) {
			windowEnd -= len(bits)
			inWindow = bits[windowStart:] + bits[:windowEnd]
			outsideWindow = bits[windowEnd:windowStart]
		} else {
			inWindow = bits[windowStart:windowEnd]
			outsideWindow = bits[:windowStart] + bits[windowEnd:]
		}

		if strings.ContainsRune(outsideWindow, '1') {
			continue
		}

		rotation := windowEnd / 2
		if windowEnd > windowStart {
			rotation = 4 + i
		}
		return twosComplementBits(int64(rotation), 4) + inWindow, nil
	}

	return "", fmt.Errorf("value %d is not encodable as an ARM rotated immediate", v)
}

func registerARMTypes(r *Registry) error {
	chars := charSet(armIntChars)

	if err := r.RegisterInt("int_12_bits_constrained", &IntType{
		Chars: chars,
		Validate: func(text string) bool {
			v, err := parseARMInt(text)
			if err != nil {
				return false
			}
			_, err = armRotatedImmediate(v)
			return err == nil
		},
		Emit: func(text string) (string, error) {
			v, err := parseARMInt(text)
			if err != nil {
				return "", err
			}
			return armRotatedImmediate(v)
		},
	}); err != nil {
		return err
	}

	if err := r.RegisterInt("int_8_bits_absolute", &IntType{
		Chars: chars,
		Validate: func(text string) bool {
			v, err := parseARMInt(text)
			return err == nil && v >= -128 && v <= 255
		},
		Emit: func(text string) (string, error) {
			v, err := parseARMInt(text)
			if err != nil {
				return "", err
			}
			return "0000" + twosComplementBits(v, 8), nil
		},
	}); err != nil {
		return err
	}

	// Load/store offset: the sign lives in the instruction's U bit, so only
	// the magnitude is emitted here.
	return r.RegisterInt("int_12_bits_offset", &IntType{
		Chars: chars,
		Validate: func(text string) bool {
			v, err := parseARMInt(text)
			if err != nil {
				return false
			}
			if v < 0 {
				v = -v
			}
			return v <= 4095
		},
		Emit: func(text string) (string, error) {
			v, err := parseARMInt(text)
			if err != nil {
				return "", err
			}
			if v < 0 {
				v = -v
			}
			return twosComplementBits(v, 12), nil
		},
	})
}
