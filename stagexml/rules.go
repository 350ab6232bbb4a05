package stagexml

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/ericchiang/css"
)

//go:embed default.rules
var defaultRules string

// SyntaxError represents a syntax error in a rules file.
type SyntaxError struct {
	Line    int    // line number (1-indexed)
	Message string // error message without line prefix
	Err     error  // underlying error, if any
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d: %s", e.Line, e.Message)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// A Rule is one check of a rules file. A rules file is line-based: each
// rule is a line of the form
//
//	selector op want
//
// preceded by any number of comment lines, which become the rule's message:
//
//	# Sprites need an image to show.
//	sprite has sprite
//
// Blank lines separate rules from comments that do not belong to them.
// Lines must not start with whitespace.
//
// The selector is a CSS selector and must not contain spaces; use the
// combinators ">", "+" and "~" instead. For the text operators, the selector
// names the attribute to compare with an "@attr" suffix:
//
//	sprite@type ~ ^(none|beat|loop)$
//
// Operators:
//   - "count": the number of matching elements equals want
//   - "has": every matching element has the attribute want
//   - "==", "!=", "~", "!~", "contains", "!contains": every matching element
//     that has the attribute satisfies the comparison with want
type Rule struct {
	Line     int    // line in the rules file (1-indexed)
	Selector string // as written, without the @attr suffix
	Attr     string // lowercased attribute for text operators
	Op       string
	Want     string
	Message  string // from the preceding comment; empty for a generated message

	sel   *css.Selector
	count int
	re    *regexp.Regexp
}

// RuleDecoder reads rules from an input stream.
type RuleDecoder struct {
	r    *bufio.Reader
	line int // current line number (1-indexed)
}

// NewRuleDecoder creates a new RuleDecoder that reads from r.
func NewRuleDecoder(r io.Reader) *RuleDecoder {
	return &RuleDecoder{r: bufio.NewReader(r)}
}

// Decode reads the next Rule from the input and returns it.
// It returns io.EOF when there are no more rules to read.
// It returns a *SyntaxError if a rule is malformed.
func (d *RuleDecoder) Decode() (Rule, error) {
	var comment []string
	for {
		line, err := d.readLine()
		if err != nil && line == "" {
			return Rule{}, err
		}
		text := strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		switch {
		case text == "":
			comment = comment[:0]
		case text[0] == '#':
			comment = append(comment, strings.TrimSpace(text[1:]))
		case text[0] == ' ' || text[0] == '\t':
			return Rule{}, &SyntaxError{
				Line:    d.line,
				Message: "unexpected whitespace at start of line",
			}
		default:
			return compileRule(d.line, text, strings.Join(comment, " "))
		}
		if err != nil {
			return Rule{}, err
		}
	}
}

// readLine reads the next line from the input, updating the line counter.
func (d *RuleDecoder) readLine() (string, error) {
	d.line++
	return d.r.ReadString('\n')
}

// ParseRules reads every rule from r.
func ParseRules(r io.Reader) ([]Rule, error) {
	var rules []Rule
	dec := NewRuleDecoder(r)
	for {
		rule, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return rules, nil
		}
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
}

// DefaultRules returns the rules every stage file is checked against
// unless configured otherwise.
func DefaultRules() []Rule {
	rules, err := ParseRules(strings.NewReader(defaultRules))
	if err != nil {
		panic("stagexml: default rules: " + err.Error())
	}
	return rules
}

// DefaultRulesText returns the source of [DefaultRules].
func DefaultRulesText() string {
	return defaultRules
}

func compileRule(line int, text, comment string) (Rule, error) {
	selector, op, want := parseArgs3(text)
	r := Rule{Line: line, Selector: selector, Op: op, Want: want, Message: comment}
	fail := func(err error, format string, args ...any) (Rule, error) {
		return Rule{}, &SyntaxError{Line: line, Message: fmt.Sprintf(format, args...), Err: err}
	}

	if sel, attr, ok := strings.Cut(selector, "@"); ok {
		r.Selector, r.Attr = sel, strings.ToLower(attr)
	}
	sel, err := css.Parse(r.Selector)
	if err != nil {
		return fail(err, "bad selector %q: %v", r.Selector, err)
	}
	r.sel = sel

	switch op {
	case "count":
		n, err := strconv.Atoi(want)
		if err != nil || n < 0 {
			return fail(err, "count wants a non-negative integer, got %q", want)
		}
		r.count = n
	case "has":
		if want == "" {
			return fail(nil, "has wants an attribute name")
		}
		r.Want = strings.ToLower(want)
	case "~", "!~":
		re, err := regexp.Compile(want)
		if err != nil {
			return fail(err, "error compiling regex %#q: %v", want, err)
		}
		r.re = re
	case "==", "!=", "contains", "!contains":
		if want == "" {
			return fail(nil, "non-regex comparison requires non-empty want value")
		}
	case "":
		return fail(nil, "missing operator")
	default:
		return fail(nil, "unknown operator %q", op)
	}

	switch op {
	case "count", "has":
		if r.Attr != "" {
			return fail(nil, "%s does not take an @attr selector", op)
		}
	default:
		if r.Attr == "" {
			return fail(nil, "%s needs an @attr selector", op)
		}
	}
	return r, nil
}

// cutField slices s around the first run of whitespace,
// returning the text before and after the run.
func cutField(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// parseArgs3 splits s into three whitespace-separated arguments.
// The third argument contains any remaining text after the first two splits.
func parseArgs3(s string) (a, b, c string) {
	a, s = cutField(s)
	b, c = cutField(s)
	return a, b, strings.TrimRightFunc(c, unicode.IsSpace)
}
