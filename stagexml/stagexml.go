// Package stagexml reads Codename Engine stage description files:
//
//	<!DOCTYPE codename-engine-stage>
//	<stage zoom="1" folder="stages/week1/">
//		<sprite name="bg" sprite="stageback" x="-600" y="-200" scroll="0.9"/>
//		<high-memory>
//			<sprite name="lights" sprite="lights" type="beat">
//				<anim name="idle" anim="lights idle" loop="false"/>
//			</sprite>
//		</high-memory>
//		<bf x="770" y="100"/>
//	</stage>
//
// Stage files are XML, but editors hand over whatever the user has typed so
// far, so [Parse] never fails: it builds the best tree it can and records
// what it could not make sense of as [Problem] values.
//
// Element and attribute names are lowercased, as the HTML tokenizer used
// for reading reports them. Columns are byte offsets within a line.
package stagexml

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed stage file.
type Document struct {
	// Root is the document node. Elements, text and comments hang below it.
	Root *html.Node

	// Problems lists structural errors found while parsing,
	// such as unclosed elements or stray end tags.
	Problems []Problem

	text       string
	lineStarts []int
	tokens     []token
	spans      map[*html.Node]span
}

// token is a tag as it appears in the source.
type token struct {
	typ          html.TokenType
	start, end   int // byte offsets into text
	node         *html.Node
	unterminated bool // runs to the end of the text without a '>'
}

// span is the source extent of an element, from the start of its start tag
// to the end of its end tag.
type span struct{ start, end int }

// Problem reports something wrong at a location in a stage file.
type Problem struct {
	Line    int    // 0-indexed
	Col     int    // 0-indexed byte column
	Message string // message without location
	Rule    int    // line of the lint rule that found it, 0 for parse problems
}

func (p Problem) String() string {
	return fmt.Sprintf("%d:%d: %s", p.Line+1, p.Col+1, p.Message)
}

// Parse reads a stage file.
func Parse(text string) *Document {
	d := &Document{
		Root:  &html.Node{Type: html.DocumentNode},
		text:  text,
		spans: make(map[*html.Node]span),
	}
	d.lineStarts = append(d.lineStarts, 0)
	for i := range len(text) {
		if text[i] == '\n' {
			d.lineStarts = append(d.lineStarts, i+1)
		}
	}
	d.build()
	return d
}

func (d *Document) build() {
	z := html.NewTokenizer(strings.NewReader(d.text))
	cur := d.Root
	off := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				d.problem(off, err.Error())
			}
			break
		}
		// Raw is only valid until Token is called.
		start := off
		off += len(z.Raw())
		tok := z.Token()

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			n := &html.Node{Type: html.ElementNode, DataAtom: tok.DataAtom, Data: tok.Data, Attr: tok.Attr}
			cur.AppendChild(n)
			d.tokens = append(d.tokens, token{typ: tt, start: start, end: off, node: n})
			d.spans[n] = span{start, off}
			if tt == html.StartTagToken {
				cur = n
			}
		case html.EndTagToken:
			d.tokens = append(d.tokens, token{typ: tt, start: start, end: off})
			open := cur
			for open != nil && open != d.Root && open.Data != tok.Data {
				open = open.Parent
			}
			if open == nil || open == d.Root {
				d.problem(start, fmt.Sprintf("unexpected </%s>", tok.Data))
				continue
			}
			for n := cur; n != open; n = n.Parent {
				d.unclosed(n, start)
			}
			d.tokens[len(d.tokens)-1].node = open
			d.close(open, off)
			cur = open.Parent
		case html.TextToken:
			cur.AppendChild(&html.Node{Type: html.TextNode, Data: tok.Data})
		case html.CommentToken:
			cur.AppendChild(&html.Node{Type: html.CommentNode, Data: tok.Data})
		case html.DoctypeToken:
			cur.AppendChild(&html.Node{Type: html.DoctypeNode, Data: tok.Data})
		}
	}

	// A tag left unterminated at the end of the input is still a tag
	// to someone typing it.
	if rest := d.text[off:]; len(rest) > 1 && rest[0] == '<' && isNameStart(rest[1]) {
		name, _ := scanName(rest, 1)
		name = strings.ToLower(name)
		n := &html.Node{Type: html.ElementNode, DataAtom: atom.Lookup([]byte(name)), Data: name}
		// The attributes typed so far, if their quotes balance.
		if z := html.NewTokenizer(strings.NewReader(rest + ">")); z.Next() == html.StartTagToken {
			n.Attr = z.Token().Attr
		}
		d.tokens = append(d.tokens, token{typ: html.StartTagToken, start: off, end: len(d.text), node: n, unterminated: true})
		d.spans[n] = span{off, len(d.text)}
		d.problem(off, fmt.Sprintf("<%s> is not terminated", n.Data))
	}

	for n := cur; n != d.Root; n = n.Parent {
		d.unclosed(n, len(d.text))
	}
}

func (d *Document) unclosed(n *html.Node, end int) {
	d.problem(d.spans[n].start, fmt.Sprintf("<%s> is not closed", n.Data))
	d.close(n, end)
}

func (d *Document) close(n *html.Node, end int) {
	s := d.spans[n]
	s.end = end
	d.spans[n] = s
}

func (d *Document) problem(off int, msg string) {
	line, col := d.Position(off)
	d.Problems = append(d.Problems, Problem{Line: line, Col: col, Message: msg})
}

// Position maps a byte offset to a 0-indexed line and byte column.
func (d *Document) Position(off int) (line, col int) {
	line = sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > off
	}) - 1
	return line, off - d.lineStarts[line]
}

// Offset maps a 0-indexed line and byte column to a byte offset,
// clamping out-of-range values to the text.
func (d *Document) Offset(line, col int) int {
	if line < 0 {
		return 0
	}
	if line >= len(d.lineStarts) {
		return len(d.text)
	}
	end := len(d.text)
	if line+1 < len(d.lineStarts) {
		end = d.lineStarts[line+1] - 1
	}
	return min(d.lineStarts[line]+max(col, 0), end)
}

// Start returns the line and column of the start tag of element n,
// and false if n is not an element of d.
func (d *Document) Start(n *html.Node) (line, col int, ok bool) {
	s, ok := d.spans[n]
	if !ok {
		return 0, 0, false
	}
	line, col = d.Position(s.start)
	return line, col, true
}

// Elements returns the elements of d in document order.
func (d *Document) Elements() []*html.Node {
	var els []*html.Node
	for n := range d.Root.Descendants() {
		if n.Type == html.ElementNode {
			els = append(els, n)
		}
	}
	return els
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	key = strings.ToLower(key)
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func isNameStart(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z' || b == '_'
}

// scanName returns the tag or attribute name starting at s[i] and the
// offset just past it.
func scanName(s string, i int) (string, int) {
	j := i
	for j < len(s) && !strings.ContainsRune(" \t\r\n/>=<", rune(s[j])) {
		j++
	}
	return s[i:j], j
}
