// Package cnels decides, for Haxe scripts written against Codename Engine,
// whether a cursor sits inside the body of a function.
//
// Editors use the answer to choose between two kinds of completion: a
// cursor at the top level of a script is a place to declare callbacks
//
//	function create() {
//	}
//
// while a cursor inside a body is a place for statements, where offering a
// new function declaration would be wrong.
//
// # Detection
//
// Detection is a heuristic, not a parse. A fixed set of declaration patterns
// is matched against the whole buffer, in this order:
//
//	function name(args) {            // header and brace on one line
//	function name(args)              // brace on the following line
//	{
//	function(args) {                 // anonymous function
//	(args) -> {                      // arrow function
//
// Headers may carry access modifiers (public, private, static, override,
// inline, dynamic, macro, extern, final), a type parameter list and a return
// type annotation:
//
//	override public static function map<T>(xs:Array<T>):Array<T> {
//
// Each match yields a [FunctionSpan]: the line the match starts on, and the
// first line at the end of which braces counted from the start of that line
// balance.
// A cursor is inside a function body when its line lies strictly between the
// start and end of some span. The declaration line and the closing-brace line
// are both outside.
//
// # Literals
//
// By default, braces and the word "function" inside string literals,
// comments and regular-expression literals are ignored; see [Mask]. Set
// [Detector.CountLiteralBraces] to scan the raw text instead.
//
// # Errors
//
// There are none. Input that never balances its braces, or that declares no
// function at all, simply answers false.
package cnels

import (
	"fmt"
	"strings"
)

// Buffer is the immutable text of a document, split into lines.
type Buffer struct {
	lines []string
}

// NewBuffer splits text into lines at "\n", dropping a "\r" that precedes it.
// The empty text is a buffer with a single empty line.
func NewBuffer(text string) Buffer {
	return Buffer{lines: strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")}
}

// BufferOf returns a buffer of lines. Lines holding "\n" are split further,
// as by [NewBuffer].
func BufferOf(lines ...string) Buffer {
	return NewBuffer(strings.Join(lines, "\n"))
}

// Len reports the number of lines in b.
func (b Buffer) Len() int {
	return len(b.lines)
}

// Line returns line i, or the empty string if i is out of range.
func (b Buffer) Line(i int) string {
	if i < 0 || i >= len(b.lines) {
		return ""
	}
	return b.lines[i]
}

// Text returns the lines of b joined by "\n".
func (b Buffer) Text() string {
	return strings.Join(b.lines, "\n")
}

// Position is a zero-based cursor location.
type Position struct {
	Line   int
	Column int
}

// Unresolved is the End of a [FunctionSpan] whose braces never balance.
const Unresolved = -1

// FunctionSpan bounds a function declaration: Start is the line its header
// begins on and End the line on which its braces balance, or [Unresolved].
type FunctionSpan struct {
	Start int
	End   int
}

// Resolved reports whether the span's braces balance.
func (s FunctionSpan) Resolved() bool {
	return s.End != Unresolved
}

// Contains reports whether line lies strictly inside the span.
// Unresolved spans contain nothing.
func (s FunctionSpan) Contains(line int) bool {
	return s.Resolved() && s.Start < line && line < s.End
}

// String formats the span with 1-based line numbers, as editors show them.
func (s FunctionSpan) String() string {
	if !s.Resolved() {
		return fmt.Sprintf("%d-?", s.Start+1)
	}
	return fmt.Sprintf("%d-%d", s.Start+1, s.End+1)
}
