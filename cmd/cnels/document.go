package main

import (
	"codename.dev/cnels"
	"codename.dev/cnels/internal/config"
	"codename.dev/cnels/stagexml"
)

// Document

type document struct {
	uri   string
	path  string // file path from the URI, or the URI itself
	lang  config.Language
	text  string
	buf   cnels.Buffer
	stage *stagexml.Document // for stage documents only
}

func newDocument(uri string, lang config.Language, text string) *document {
	d := &document{uri: uri, path: uriPath(uri), lang: lang}
	d.setText(text)
	return d
}

func (d *document) setText(text string) {
	d.text = text
	d.buf = cnels.NewBuffer(text)
	d.stage = nil
	if d.lang == config.Stage {
		d.stage = stagexml.Parse(text)
	}
}

// column converts an LSP position's UTF-16 character offset to a byte
// offset within its line.
func (d *document) column(pos position) int {
	return byteOffset(d.buf.Line(pos.Line), pos.Character)
}

// wordAt returns the identifier around the cursor and its range.
func (d *document) wordAt(pos position) (string, lspRange, bool) {
	line := d.buf.Line(pos.Line)
	start, end := identAround(line, d.column(pos))
	if start == end {
		return "", lspRange{}, false
	}
	rng := lspRange{
		Start: position{Line: pos.Line, Character: utf16Len(line[:start])},
		End:   position{Line: pos.Line, Character: utf16Len(line[:end])},
	}
	return line[start:end], rng, true
}

// identAround returns the byte span of the identifier touching col.
// A cursor just past the last character still touches it.
func identAround(line string, col int) (start, end int) {
	start, end = col, col
	for start > 0 && isIdent(line[start-1]) {
		start--
	}
	for end < len(line) && isIdent(line[end]) {
		end++
	}
	if start < end && line[start] >= '0' && line[start] <= '9' {
		return col, col
	}
	return start, end
}

func isIdent(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_'
}

// Helpers

// byteOffset returns the byte offset of the UTF-16 offset char in line,
// clamped to the line.
func byteOffset(line string, char int) int {
	n := 0
	for i, r := range line {
		if n >= char {
			return i
		}
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return len(line)
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// lineRange spans from the byte column col to the end of line i.
func (d *document) lineRange(i, col int) lspRange {
	line := d.buf.Line(i)
	col = min(max(col, 0), len(line))
	return lspRange{
		Start: position{Line: i, Character: utf16Len(line[:col])},
		End:   position{Line: i, Character: utf16Len(line)},
	}
}
