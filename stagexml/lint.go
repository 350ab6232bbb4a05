package stagexml

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Lint checks doc against rules. Parse problems come first, followed by
// rule failures in rule order.
func Lint(doc *Document, rules []Rule) []Problem {
	problems := append([]Problem(nil), doc.Problems...)
	for _, r := range rules {
		problems = append(problems, r.check(doc)...)
	}
	return problems
}

func (r Rule) check(doc *Document) []Problem {
	matches := r.sel.Select(doc.Root)

	switch r.Op {
	case "count":
		if len(matches) == r.count {
			return nil
		}
		var at *html.Node
		if len(matches) > 0 {
			at = matches[0]
		}
		msg := fmt.Sprintf("%s matches %d element(s), want %d", r.Selector, len(matches), r.count)
		return []Problem{r.problem(doc, at, msg)}
	case "has":
		var problems []Problem
		for _, n := range matches {
			if _, ok := Attr(n, r.Want); !ok {
				msg := fmt.Sprintf("<%s> is missing attribute %q", n.Data, r.Want)
				problems = append(problems, r.problem(doc, n, msg))
			}
		}
		return problems
	default:
		var problems []Problem
		for _, n := range matches {
			got, ok := Attr(n, r.Attr)
			if !ok {
				continue
			}
			if msg := r.compare(fmt.Sprintf("<%s %s>", n.Data, r.Attr), got); msg != "" {
				problems = append(problems, r.problem(doc, n, msg))
			}
		}
		return problems
	}
}

// problem locates a failure at n, or at the start of the document when
// n is nil. A comment on the rule replaces the generated message.
func (r Rule) problem(doc *Document, n *html.Node, msg string) Problem {
	p := Problem{Message: msg, Rule: r.Line}
	if n != nil {
		p.Line, p.Col, _ = doc.Start(n)
	}
	if r.Message != "" {
		p.Message = r.Message + " (" + msg + ")"
	}
	return p
}

// compare checks got against the rule's text operator and returns a
// failure message, or the empty string if the comparison holds.
func (r Rule) compare(what, got string) string {
	want := r.Want
	switch r.Op {
	case "==":
		if got != want {
			return fmt.Sprintf("%s = %#q, want %#q", what, got, want)
		}
	case "!=":
		if got == want {
			return fmt.Sprintf("%s == %#q (but should not)", what, want)
		}
	case "~":
		if !r.re.MatchString(got) {
			return fmt.Sprintf("%s = %s does not match %#q", what, strconv.Quote(got), want)
		}
	case "!~":
		if r.re.MatchString(got) {
			return fmt.Sprintf("%s = %s matches %#q (but should not)", what, strconv.Quote(got), want)
		}
	case "contains":
		if !strings.Contains(got, want) {
			return fmt.Sprintf("%s = %s does not contain %#q", what, strconv.Quote(got), want)
		}
	case "!contains":
		if strings.Contains(got, want) {
			return fmt.Sprintf("%s = %s contains %#q (but should not)", what, strconv.Quote(got), want)
		}
	}
	return ""
}
