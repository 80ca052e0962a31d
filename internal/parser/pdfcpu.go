package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// readPDFCPUPages reads each page's content stream with pdfcpu. Font names
// are the page resource names (F1, F2...), so bold detection only works when
// a producer used descriptive resource names; sizes come from Tf.
func readPDFCPUPages(path string) ([]doctree.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, errNoPages
	}

	pages := make([]doctree.Page, ctx.PageCount)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		pages[pageNr-1] = parseContentStream(data)
	}
	return pages, nil
}

// contentState is the text state tracked while scanning a content stream.
type contentState struct {
	font  string
	size  float64
	page  doctree.Page
	block doctree.Block
	line  doctree.Line
}

func (s *contentState) show(text string) {
	if text == "" {
		return
	}
	n := len(s.line.Spans)
	if n > 0 && s.line.Spans[n-1].FontName == s.font && s.line.Spans[n-1].FontSize == s.size {
		s.line.Spans[n-1].Text += text
		return
	}
	s.line.Spans = append(s.line.Spans, doctree.Span{Text: text, FontName: s.font, FontSize: s.size})
}

func (s *contentState) newLine() {
	var kept []doctree.Span
	for _, sp := range s.line.Spans {
		if sp.Text = strings.TrimSpace(sp.Text); sp.Text != "" {
			kept = append(kept, sp)
		}
	}
	if len(kept) > 0 {
		s.block.Lines = append(s.block.Lines, doctree.Line{Spans: kept})
	}
	s.line = doctree.Line{}
}

func (s *contentState) endBlock() {
	s.newLine()
	if len(s.block.Lines) > 0 {
		s.page.Blocks = append(s.page.Blocks, s.block)
	}
	s.block = doctree.Block{}
}

type operandKind int

const (
	opNumber operandKind = iota
	opString
	opName
	opArray
	opOther
)

type operand struct {
	kind  operandKind
	num   float64
	str   string
	items []operand
}

// parseContentStream interprets the text operators of a page content
// stream: Tf sets the font, Tj/TJ/'/" show text, Td/TD/T*/Tm start a new
// line and BT/ET bound a block. Everything else is skipped.
func parseContentStream(data []byte) doctree.Page {
	var (
		st    contentState
		stack []operand
		marks []int // array start positions in stack
	)
	lx := lexer{data: data}
	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		switch tok.kind {
		case tokArrayStart:
			marks = append(marks, len(stack))
		case tokArrayEnd:
			if len(marks) == 0 {
				continue
			}
			m := marks[len(marks)-1]
			marks = marks[:len(marks)-1]
			items := append([]operand(nil), stack[m:]...)
			stack = append(stack[:m], operand{kind: opArray, items: items})
		case tokOperand:
			stack = append(stack, tok.operand)
		case tokOperator:
			st.apply(tok.op, stack)
			if tok.op == "ID" {
				lx.skipInlineImage()
			}
			stack = stack[:0]
			marks = marks[:0]
		}
	}
	st.endBlock()
	return st.page
}

func (s *contentState) apply(op string, args []operand) {
	last := func(kind operandKind) (operand, bool) {
		if len(args) == 0 || args[len(args)-1].kind != kind {
			return operand{}, false
		}
		return args[len(args)-1], true
	}
	switch op {
	case "BT":
		s.newLine()
	case "ET":
		s.endBlock()
	case "Tf":
		if len(args) >= 2 && args[len(args)-2].kind == opName {
			s.font = args[len(args)-2].str
		}
		if size, ok := last(opNumber); ok && size.num > 0 {
			s.size = size.num
		}
	case "Td", "TD", "T*", "Tm":
		s.newLine()
	case "Tj":
		if str, ok := last(opString); ok {
			s.show(str.str)
		}
	case "'", `"`:
		s.newLine()
		if str, ok := last(opString); ok {
			s.show(str.str)
		}
	case "TJ":
		arr, ok := last(opArray)
		if !ok {
			return
		}
		for _, item := range arr.items {
			switch item.kind {
			case opString:
				s.show(item.str)
			case opNumber:
				// Large negative kerning is an inter-word gap.
				if item.num < -200 {
					s.show(" ")
				}
			}
		}
	}
}

type tokenKind int

const (
	tokOperand tokenKind = iota
	tokOperator
	tokArrayStart
	tokArrayEnd
)

type token struct {
	kind    tokenKind
	operand operand
	op      string
}

type lexer struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isPDFDelim(c byte) bool {
	return strings.IndexByte("()<>[]{}/%", c) >= 0
}

func (lx *lexer) next() (token, bool) {
	d := lx.data
	for lx.pos < len(d) {
		c := d[lx.pos]
		switch {
		case isPDFSpace(c):
			lx.pos++
		case c == '%':
			for lx.pos < len(d) && d[lx.pos] != '\n' && d[lx.pos] != '\r' {
				lx.pos++
			}
		case c == '(':
			return token{kind: tokOperand, operand: operand{kind: opString, str: decodePDFString(lx.literal())}}, true
		case c == '<':
			if lx.pos+1 < len(d) && d[lx.pos+1] == '<' {
				lx.pos += 2
				continue
			}
			return token{kind: tokOperand, operand: operand{kind: opString, str: lx.hexString()}}, true
		case c == '>':
			lx.pos++
		case c == '[':
			lx.pos++
			return token{kind: tokArrayStart}, true
		case c == ']':
			lx.pos++
			return token{kind: tokArrayEnd}, true
		case c == '/':
			lx.pos++
			return token{kind: tokOperand, operand: operand{kind: opName, str: lx.regular()}}, true
		case c == '{' || c == '}':
			lx.pos++
		default:
			word := lx.regular()
			if word == "" {
				lx.pos++
				continue
			}
			if n, err := strconv.ParseFloat(word, 64); err == nil {
				return token{kind: tokOperand, operand: operand{kind: opNumber, num: n}}, true
			}
			if word == "true" || word == "false" || word == "null" {
				return token{kind: tokOperand, operand: operand{kind: opOther}}, true
			}
			return token{kind: tokOperator, op: word}, true
		}
	}
	return token{}, false
}

func (lx *lexer) regular() string {
	start := lx.pos
	for lx.pos < len(lx.data) && !isPDFSpace(lx.data[lx.pos]) && !isPDFDelim(lx.data[lx.pos]) {
		lx.pos++
	}
	return string(lx.data[start:lx.pos])
}

// literal returns the raw bytes of a (...) string, honouring nesting and
// escapes.
func (lx *lexer) literal() []byte {
	d := lx.data
	lx.pos++ // (
	start := lx.pos
	depth := 1
	for lx.pos < len(d) {
		switch d[lx.pos] {
		case '\\':
			lx.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				raw := d[start:lx.pos]
				lx.pos++
				return raw
			}
		}
		lx.pos++
	}
	return d[start:]
}

func (lx *lexer) hexString() string {
	d := lx.data
	lx.pos++ // <
	var digits []byte
	for lx.pos < len(d) && d[lx.pos] != '>' {
		if c := d[lx.pos]; !isPDFSpace(c) {
			digits = append(digits, c)
		}
		lx.pos++
	}
	lx.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i+1 < len(digits); i += 2 {
		v, err := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		if err != nil {
			return ""
		}
		out = append(out, byte(v))
	}
	return string(out)
}

// skipInlineImage jumps past inline image data to the EI operator.
func (lx *lexer) skipInlineImage() {
	idx := bytes.Index(lx.data[lx.pos:], []byte("EI"))
	for idx >= 0 {
		at := lx.pos + idx
		before := at == 0 || isPDFSpace(lx.data[at-1])
		after := at+2 >= len(lx.data) || isPDFSpace(lx.data[at+2])
		if before && after {
			lx.pos = at + 2
			return
		}
		next := bytes.Index(lx.data[at+2:], []byte("EI"))
		if next < 0 {
			break
		}
		idx = at + 2 + next - lx.pos
	}
	lx.pos = len(lx.data)
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		case '\n':
			// Line continuation.
		default:
			// Octal escape (e.g. \040 for space).
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			val := int(raw[i] - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}
