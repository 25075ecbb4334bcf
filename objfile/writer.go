// Package objfile writes the assembled byte stream out: as a raw binary, as
// a Sigma16 textual data listing, or patched into a template executable.
package objfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Writer emits an assembled byte stream in the supported output formats.
type Writer struct {
	raw []byte
}

// NewWriter creates a writer over the assembled bytes.
func NewWriter(raw []byte) *Writer {
	return &Writer{raw: raw}
}

// WriteBin writes the raw byte stream to path.
func (w *Writer) WriteBin(path string) error {
	if err := os.WriteFile(path, w.raw, 0o644); err != nil { // #nosec G306 -- program output
		return fmt.Errorf("objfile: writing %s: %w", path, err)
	}
	return nil
}

// WriteSigma16 writes the byte stream as Sigma16 data directives, one 16-bit
// word per line, loadable in a Sigma16 simulator.
func (w *Writer) WriteSigma16(path string) error {
	if len(w.raw)%2 != 0 {
		return fmt.Errorf(
			"objfile: Sigma16 output needs 16-bit words, but the byte stream has odd length %d", len(w.raw))
	}

	var sb strings.Builder
	for i := 0; i < len(w.raw); i += 2 {
		fmt.Fprintf(&sb, "    data $%02x%02x\n", w.raw[i], w.raw[i+1])
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil { // #nosec G306 -- program output
		return fmt.Errorf("objfile: writing %s: %w", path, err)
	}
	return nil
}

// WriteObject patches the byte stream into a copy of a template executable.
// Each template carries a "<template>.info" file whose first line is the
// offset of the code cave and whose second line is the cave's size; the
// machine code must fit.
func (w *Writer) WriteObject(templatePath, outputPath string) error {
	info, err := readTemplateInfo(templatePath + ".info")
	if err != nil {
		return err
	}
	if len(w.raw) > info.size {
		return fmt.Errorf(
			"objfile: assembled code is %d bytes but the template cave holds only %d", len(w.raw), info.size)
	}

	template, err := os.ReadFile(templatePath) // #nosec G304 -- user-supplied template path
	if err != nil {
		return fmt.Errorf("objfile: reading template %s: %w", templatePath, err)
	}
	if info.offset+len(w.raw) > len(template) {
		return fmt.Errorf(
			"objfile: cave offset %#x plus code size exceeds template size %d", info.offset, len(template))
	}

	patched := make([]byte, len(template))
	copy(patched, template)
	copy(patched[info.offset:], w.raw)

	if err := os.WriteFile(outputPath, patched, 0o644); err != nil { // #nosec G306 -- program output
		return fmt.Errorf("objfile: writing %s: %w", outputPath, err)
	}
	return nil
}

type templateInfo struct {
	offset int
	size   int
}

func readTemplateInfo(path string) (templateInfo, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- derived from user-supplied template path
	if err != nil {
		return templateInfo{}, fmt.Errorf("objfile: reading template info %s: %w", path, err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		return templateInfo{}, fmt.Errorf(
			"objfile: template info %s must have two lines (cave offset, cave size)", path)
	}

	offset, err := parseInfoNumber(strings.TrimSpace(lines[0]))
	if err != nil {
		return templateInfo{}, fmt.Errorf("objfile: bad cave offset in %s: %w", path, err)
	}
	size, err := parseInfoNumber(strings.TrimSpace(lines[1]))
	if err != nil {
		return templateInfo{}, fmt.Errorf("objfile: bad cave size in %s: %w", path, err)
	}

	return templateInfo{offset: offset, size: size}, nil
}

func parseInfoNumber(s string) (int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseInt(s[2:], 16, 32)
		return int(v), err
	}
	v, err := strconv.ParseInt(s, 10, 32)
	return int(v), err
}
