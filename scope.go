package cnels

import (
	"regexp"
	"sort"
)

const (
	modifiers  = `(?:(?:public|private|static|override|inline|dynamic|macro|extern|final)\s+)*`
	typeParams = `(?:\s*<[^(){}]*>)?`
	returnType = `(?:\s*:\s*[\w.]+(?:<[\w.<>, \t]*>)?)?`
	header     = `\b` + modifiers + `function\s+\w+` + typeParams + `\s*\([^){}]*\)` + returnType
)

// declarations are tried in order. Each match ends at the opening brace of
// the function body.
var declarations = []*regexp.Regexp{
	regexp.MustCompile(header + `[ \t]*\{`),
	regexp.MustCompile(header + `[ \t]*\r?\n\s*\{`),
	regexp.MustCompile(`\bfunction\s*\([^){}]*\)` + returnType + `\s*\{|\([^(){}]*\)\s*->\s*\{`),
}

// A Detector reports whether positions lie inside function bodies.
// The zero value masks literals before scanning.
type Detector struct {
	// CountLiteralBraces scans the raw text, so braces and declarations
	// inside strings and comments count as code.
	CountLiteralBraces bool
}

// InsideFunctionBody reports whether pos lies inside the body of a function
// declared in b, using the zero [Detector].
func InsideFunctionBody(b Buffer, pos Position) bool {
	return Detector{}.InsideFunctionBody(b, pos)
}

// Spans returns the spans of all declarations in b, using the zero [Detector].
func Spans(b Buffer) []FunctionSpan {
	return Detector{}.Spans(b)
}

// InsideFunctionBody reports whether pos.Line lies strictly between the
// start and end lines of some resolved function span in b.
// Column is ignored.
func (d Detector) InsideFunctionBody(b Buffer, pos Position) bool {
	_, ok := d.Enclosing(b, pos)
	return ok
}

// Enclosing returns the first span containing pos.Line, trying declaration
// patterns in order and matches of each pattern in order of appearance.
func (d Detector) Enclosing(b Buffer, pos Position) (FunctionSpan, bool) {
	if pos.Line < 0 || pos.Line >= b.Len() {
		return FunctionSpan{}, false
	}
	sc := d.scanner(b)
	for _, re := range declarations {
		for _, m := range re.FindAllStringIndex(sc.text, -1) {
			if s := sc.span(m); s.Contains(pos.Line) {
				return s, true
			}
		}
	}
	return FunctionSpan{}, false
}

// Spans returns a span for every declaration match in b, resolved or not,
// ordered by pattern and then by position.
func (d Detector) Spans(b Buffer) []FunctionSpan {
	sc := d.scanner(b)
	var spans []FunctionSpan
	for _, re := range declarations {
		for _, m := range re.FindAllStringIndex(sc.text, -1) {
			spans = append(spans, sc.span(m))
		}
	}
	return spans
}

type scanner struct {
	text       string
	lineStarts []int // byte offset of each line
}

func (d Detector) scanner(b Buffer) *scanner {
	text := b.Text()
	if !d.CountLiteralBraces {
		text = Mask(text)
	}
	starts := make([]int, 1, max(b.Len(), 1))
	for i := range len(text) {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &scanner{text: text, lineStarts: starts}
}

// lineOf maps a byte offset to its line.
func (sc *scanner) lineOf(off int) int {
	return sort.Search(len(sc.lineStarts), func(i int) bool {
		return sc.lineStarts[i] > off
	}) - 1
}

// span resolves the declaration matched at m. Braces are counted line by
// line from the start of the match's first line, and the span ends on the
// first line after which as many braces have closed as opened.
func (sc *scanner) span(m []int) FunctionSpan {
	s := FunctionSpan{Start: sc.lineOf(m[0]), End: Unresolved}
	depth, seen := 0, false
	for line := s.Start; line < len(sc.lineStarts); line++ {
		end := len(sc.text)
		if line+1 < len(sc.lineStarts) {
			end = sc.lineStarts[line+1]
		}
		for i := sc.lineStarts[line]; i < end; i++ {
			switch sc.text[i] {
			case '{':
				depth++
				seen = true
			case '}':
				depth--
				seen = true
			}
		}
		if seen && depth == 0 {
			s.End = line
			return s
		}
	}
	return s
}
