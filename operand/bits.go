package operand

import "strings"

// twosComplementBits returns v's low width bits as a '0'/'1' string,
// most significant bit first.
func twosComplementBits(v int64, width int) string {
	var sb strings.Builder
	sb.Grow(width)
	for i := width - 1; i >= 0; i-- {
		if v>>uint(i)&1 == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// byteSwapBits reverses the byte order of a bit string whose length is a
// multiple of 8. Used by the little-endian emitters.
func byteSwapBits(bits string) string {
	var sb strings.Builder
	sb.Grow(len(bits))
	for i := len(bits) - 8; i >= 0; i -= 8 {
		sb.WriteString(bits[i : i+8])
	}
	return sb.String()
}

// littleEndianBits encodes v as width bits of two's complement in
// little-endian byte order.
func littleEndianBits(v int64, width int) string {
	return byteSwapBits(twosComplementBits(v, width))
}
