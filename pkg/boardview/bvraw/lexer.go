package bvraw

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer splits structured-text boardviews into directives, words and line
// breaks. Directives are matched as prefixes, so "PART_NAMEU1" still yields
// a PART_NAME directive followed by the word "U1".
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Newline", Pattern: `\r\n|\r|\n`},
	{Name: "Space", Pattern: `[ \t\f\v]+`},
	{Name: "PartName", Pattern: `PART_NAME`},
	{Name: "PartEnd", Pattern: `PART_END`},
	{Name: "PinNet", Pattern: `PIN_NET`},
	{Name: "Word", Pattern: `[^\s]+`},
})

var symbols = Lexer.Symbols()

var (
	tokNewline  = symbols["Newline"]
	tokSpace    = symbols["Space"]
	tokPartName = symbols["PartName"]
	tokPartEnd  = symbols["PartEnd"]
	tokPinNet   = symbols["PinNet"]
)

// line is one input line as a token sequence without the line break.
type line []lexer.Token

func (l line) blank() bool {
	for _, t := range l {
		if t.Type != tokSpace {
			return false
		}
	}
	return true
}

// trimmed drops leading and trailing whitespace tokens.
func (l line) trimmed() line {
	for len(l) > 0 && l[0].Type == tokSpace {
		l = l[1:]
	}
	for len(l) > 0 && l[len(l)-1].Type == tokSpace {
		l = l[:len(l)-1]
	}
	return l
}

// text joins token values back into source text.
func (l line) text() string {
	n := 0
	for _, t := range l {
		n += len(t.Value)
	}
	b := make([]byte, 0, n)
	for _, t := range l {
		b = append(b, t.Value...)
	}
	return string(b)
}

// splitLines tokenizes text and groups tokens by line.
func splitLines(text string) ([]line, error) {
	lx, err := Lexer.LexString("", text)
	if err != nil {
		return nil, err
	}
	var (
		lines []line
		cur   line
	)
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		if tok.EOF() {
			break
		}
		if tok.Type == tokNewline {
			lines = append(lines, cur)
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines, nil
}
