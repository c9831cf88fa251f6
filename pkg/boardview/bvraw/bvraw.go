// Package bvraw decodes the structured-text boardview format: a header line
// carrying BVRAW_FORMAT_3 followed by PART_NAME / PIN_NET / PART_END
// directives.
package bvraw

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceBV/pkg/boardview/model"
)

// Header is the token that must appear on the first non-blank line.
const Header = "BVRAW_FORMAT_3"

// FormatTag is stored under meta.format.
const FormatTag = "BVRAW_FORMAT_3"

type state int

const (
	outsidePart state = iota
	insidePart
)

// Parse decodes raw file bytes.
func Parse(data []byte) (*model.ParseResult, error) {
	return ParseText(strings.ToValidUTF8(string(data), ""))
}

// ParseText decodes structured text. It fails with model.ErrMissingHeader when
// the first non-blank line lacks Header and with model.ErrEmptyResult when no
// nets or no parts were found.
func ParseText(text string) (*model.ParseResult, error) {
	lines, err := splitLines(text)
	if err != nil {
		return nil, fmt.Errorf("bvraw: tokenize: %w", err)
	}

	body := -1
	for i, ln := range lines {
		if ln.blank() {
			continue
		}
		if !strings.Contains(ln.text(), Header) {
			return nil, model.ErrMissingHeader
		}
		body = i + 1
		break
	}
	if body < 0 {
		return nil, model.ErrMissingHeader
	}

	b := model.NewBuilder()
	st := outsidePart
	part := ""
	for _, ln := range lines[body:] {
		ln = ln.trimmed()
		if len(ln) == 0 {
			continue
		}
		switch ln[0].Type {
		case tokPartName:
			st = insidePart
			part = strings.ToUpper(strings.TrimSpace(ln[1:].text()))
			if part != "" {
				b.AddComponent(part)
			}
		case tokPartEnd:
			if len(ln) == 1 {
				st = outsidePart
				part = ""
			}
		case tokPinNet:
			raw := strings.TrimSpace(ln[1:].text())
			if raw == "" {
				continue
			}
			if st == insidePart && part != "" {
				b.Link(raw, model.NewLink(part))
			} else {
				b.AddNet(raw)
			}
		}
	}

	if b.NetCount() == 0 || b.ComponentCount() == 0 {
		return nil, model.ErrEmptyResult
	}
	return b.Result(FormatTag), nil
}

// FromHeader returns text starting at the first line containing Header, or
// text unchanged when the header is absent. Containers that embed a
// structured-text payload after a binary preamble use it before ParseText.
func FromHeader(text string) string {
	idx := strings.Index(text, Header)
	if idx < 0 {
		return text
	}
	start := strings.LastIndexAny(text[:idx], "\r\n") + 1
	return text[start:]
}

// HasHeader reports whether the first non-blank line of head carries Header.
func HasHeader(head []byte) bool {
	for _, ln := range strings.Split(string(head), "\n") {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		return strings.Contains(ln, Header)
	}
	return false
}
