package cnels

// Mask returns text with the contents of string literals, comments and
// regular-expression literals replaced by spaces. Newlines are kept, and the
// result has the same length as text, so offsets and line numbers agree
// between the two.
//
// Recognized literals:
//
//	"double quoted"   'single quoted'   (backslash escapes, may span lines)
//	// line comment
//	/* block comment */
//	~/regular expression/flags
//
// Delimiters are masked along with contents. An unterminated literal masks
// everything to the end of the text.
func Mask(text string) string {
	b := []byte(text)
	for i := 0; i < len(b); {
		switch {
		case b[i] == '"' || b[i] == '\'':
			i = blankQuoted(b, i, b[i], true)
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '/':
			i = blankUntil(b, i, "\n")
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '*':
			i = blankUntil(b, i, "*/")
		case b[i] == '~' && i+1 < len(b) && b[i+1] == '/':
			b[i] = ' '
			i = blankQuoted(b, i+1, '/', false)
		default:
			i++
		}
	}
	return string(b)
}

// blankQuoted blanks the literal starting at the quote b[start] through the
// matching unescaped quote, and returns the index just past it.
// If multiline is false, a newline ends the literal.
func blankQuoted(b []byte, start int, quote byte, multiline bool) int {
	b[start] = ' '
	for i := start + 1; i < len(b); i++ {
		switch c := b[i]; {
		case c == '\n':
			if !multiline {
				return i
			}
		case c == '\\':
			b[i] = ' '
			if i+1 < len(b) && b[i+1] != '\n' {
				i++
				b[i] = ' '
			}
		case c == quote:
			b[i] = ' '
			return i + 1
		default:
			b[i] = ' '
		}
	}
	return len(b)
}

// blankUntil blanks from start through the end of the first occurrence of
// term after the two-byte opener, leaving newlines intact, and returns the
// index just past it. A "\n" terminator is left in place.
func blankUntil(b []byte, start int, term string) int {
	i := start
	b[i], b[i+1] = ' ', ' '
	i += 2
	for i < len(b) {
		if hasPrefixAt(b, i, term) {
			if term == "\n" {
				return i
			}
			for j := range len(term) {
				b[i+j] = ' '
			}
			return i + len(term)
		}
		if b[i] != '\n' {
			b[i] = ' '
		}
		i++
	}
	return i
}

func hasPrefixAt(b []byte, i int, s string) bool {
	return len(b)-i >= len(s) && string(b[i:i+len(s)]) == s
}
