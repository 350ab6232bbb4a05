package stagexml

import (
	"strings"

	"golang.org/x/net/html"
)

// Kind classifies what a cursor is on.
type Kind int

const (
	Text           Kind = iota // outside any tag
	ElementName                // on the name in a start or end tag
	AttributeName              // on an attribute name
	AttributeValue             // inside an attribute value
	InTag                      // elsewhere inside a start tag
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case ElementName:
		return "element name"
	case AttributeName:
		return "attribute name"
	case AttributeValue:
		return "attribute value"
	case InTag:
		return "in tag"
	}
	return "unknown"
}

// Context describes the cursor's surroundings.
type Context struct {
	Kind Kind

	// Element is the element whose tag the cursor is in,
	// or for Text the innermost element containing the cursor.
	// It is nil at the top level.
	Element *html.Node

	// Attribute is the lowercased attribute name for
	// AttributeName and AttributeValue.
	Attribute string

	// Word is the name under the cursor, as written.
	Word string

	// StartTag reports whether the cursor is in a start tag,
	// where attributes may be added.
	StartTag bool
}

// At returns the context of the cursor at a 0-indexed line and byte column.
func (d *Document) At(line, col int) Context {
	off := d.Offset(line, col)
	for _, t := range d.tokens {
		// The offset just past a tag is outside it,
		// unless the tag is still being typed.
		if off >= t.start && (off < t.end || off == t.end && t.unterminated) {
			return d.inTag(t, off-t.start)
		}
	}
	return Context{Kind: Text, Element: d.enclosing(off)}
}

// inTag classifies offset rel within token t.
func (d *Document) inTag(t token, rel int) Context {
	raw := d.text[t.start:t.end]
	ctx := Context{Kind: InTag, Element: t.node, StartTag: t.typ != html.EndTagToken}

	i := 1 // past '<'
	if t.typ == html.EndTagToken {
		i = 2 // past '</'
	}
	name, end := scanName(raw, i)
	if rel >= i && rel <= end {
		ctx.Kind = ElementName
		ctx.Word = name
		return ctx
	}
	if !ctx.StartTag {
		return ctx
	}

	for i = end; i < len(raw); {
		for i < len(raw) && strings.IndexByte(" \t\r\n/", raw[i]) >= 0 {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			break
		}
		key, kend := scanName(raw, i)
		if kend == i {
			i++ // stray character
			continue
		}
		if rel >= i && rel <= kend {
			ctx.Kind = AttributeName
			ctx.Attribute = strings.ToLower(key)
			ctx.Word = key
			return ctx
		}
		i = kend
		for i < len(raw) && strings.IndexByte(" \t\r\n", raw[i]) >= 0 {
			i++
		}
		if i >= len(raw) || raw[i] != '=' {
			continue
		}
		i++
		for i < len(raw) && strings.IndexByte(" \t\r\n", raw[i]) >= 0 {
			i++
		}
		vstart, vend := i, i
		if i < len(raw) && (raw[i] == '"' || raw[i] == '\'') {
			if j := strings.IndexByte(raw[i+1:], raw[i]); j >= 0 {
				vend = i + 1 + j + 1
			} else {
				vend = len(raw)
			}
		} else {
			for vend < len(raw) && strings.IndexByte(" \t\r\n>", raw[vend]) < 0 {
				vend++
			}
		}
		if rel > vstart && rel < vend || rel == vend && vend == len(raw) {
			ctx.Kind = AttributeValue
			ctx.Attribute = strings.ToLower(key)
			return ctx
		}
		i = vend
	}
	return ctx
}

// enclosing returns the innermost element whose span contains off.
func (d *Document) enclosing(off int) *html.Node {
	var best *html.Node
	for n := d.Root.FirstChild; n != nil; {
		s, ok := d.spans[n]
		if n.Type != html.ElementNode || !ok || off < s.start || off >= s.end {
			n = n.NextSibling
			continue
		}
		best = n
		n = n.FirstChild
	}
	return best
}
