package operand

import (
	"fmt"
	"strconv"
	"strings"
)

// Built-in Sigma16 operand types. Sigma16 data values are decimal or $XXXX
// hex, emitted as big-endian 16-bit words. Label operands address 16-bit
// words, so byte addresses are halved.

const sigma16IntChars = "-0123456789abcdefABCDEF$"

func parseSigma16Int(text string) (int64, error) {
	if strings.HasPrefix(text, "$") && len(text) == 5 {
		return strconv.ParseInt(text[1:], 16, 64)
	}
	return strconv.ParseInt(text, 10, 64)
}

func registerSigma16Types(r *Registry) error {
	if err := r.RegisterInt("int_sigma16_data", &IntType{
		Chars: charSet(sigma16IntChars),
		Validate: func(text string) bool {
			v, err := parseSigma16Int(text)
			return err == nil && v >= -32768 && v <= 65535
		},
		Emit: func(text string) (string, error) {
			v, err := parseSigma16Int(text)
			if err != nil {
				return "", fmt.Errorf("operand: bad int_sigma16_data value %q: %w", text, err)
			}
			return twosComplementBits(v, 16), nil
		},
	}); err != nil {
		return err
	}

	return r.RegisterLabel("label_sigma16", &LabelType{
		Bits: func(sourceAddr, labelAddr uint32) (string, error) {
			return twosComplementBits(int64(labelAddr/2), 16), nil
		},
	})
}
