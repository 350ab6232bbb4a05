package stagexml

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"

	"kr.dev/diff"
)

const week1 = `<!DOCTYPE codename-engine-stage>
<stage zoom="1" folder="stages/week1/">
	<sprite name="bg" sprite="stageback"/>
	<sprite name="lights" type="beat">
		<anim name="idle" anim="lights idle"/>
	</sprite>
	<bf x="770" y="100"/>
</stage>
`

func TestParseTree(t *testing.T) {
	doc := Parse(week1)
	if len(doc.Problems) != 0 {
		t.Fatalf("Problems = %v, want none", doc.Problems)
	}

	var got []string
	for _, n := range doc.Elements() {
		line, col, ok := doc.Start(n)
		if !ok {
			t.Fatalf("Start(%s): not found", n.Data)
		}
		parent := n.Parent.Data
		got = append(got, strings.Join([]string{n.Data, parent, strconv.Itoa(line), strconv.Itoa(col)}, " "))
	}
	want := []string{
		"stage  1 0", // the document node has no name
		"sprite stage 2 1",
		"sprite stage 3 1",
		"anim sprite 4 2",
		"bf stage 6 1",
	}
	diff.Test(t, t.Errorf, got, want)
}

func TestParseLowercasesNames(t *testing.T) {
	doc := Parse(`<stage><sprite flipX="true"/></stage>`)
	els := doc.Elements()
	if len(els) != 2 {
		t.Fatalf("got %d elements, want 2", len(els))
	}
	if v, ok := Attr(els[1], "flipX"); !ok || v != "true" {
		t.Errorf("Attr(flipX) = %q, %v; want \"true\", true", v, ok)
	}
	if els[1].Attr[0].Key != "flipx" {
		t.Errorf("key = %q, want flipx", els[1].Attr[0].Key)
	}
}

func TestParseProblems(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "unclosed child",
			text: "<stage><sprite></stage>",
			want: []string{"1:8: <sprite> is not closed"},
		},
		{
			name: "stray end tag",
			text: "<stage></stage></sprite>",
			want: []string{"1:16: unexpected </sprite>"},
		},
		{
			name: "unclosed at end",
			text: "<stage>\n<sprite/>\n",
			want: []string{"1:1: <stage> is not closed"},
		},
		{
			name: "unterminated tag",
			text: "<stage>\n\t<sprite x=\"0\" ",
			want: []string{"2:2: <sprite> is not terminated", "1:1: <stage> is not closed"},
		},
		{
			name: "self closing",
			text: "<stage><sprite/><solid/></stage>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range Parse(tt.text).Problems {
				got = append(got, p.String())
			}
			diff.Test(t, t.Errorf, got, tt.want)
		})
	}
}

func TestAt(t *testing.T) {
	doc := Parse(week1)
	tests := []struct {
		line, col int
		kind      Kind
		element   string
		attr      string
		word      string
	}{
		{2, 0, Text, "stage", "", ""},
		{2, 2, ElementName, "sprite", "", "sprite"},
		{2, 9, AttributeName, "sprite", "name", "name"},
		{2, 15, AttributeValue, "sprite", "name", ""},
		{2, 13, AttributeName, "sprite", "name", "name"}, // just past the name
		{4, 5, ElementName, "anim", "", "anim"},
		{5, 4, ElementName, "sprite", "", "sprite"}, // end tag
		{7, 3, ElementName, "stage", "", "stage"},   // end tag
		{8, 0, Text, "", "", ""},
		{1, 16, AttributeName, "stage", "folder", "folder"},
	}
	for _, tt := range tests {
		ctx := doc.At(tt.line, tt.col)
		var element string
		if ctx.Element != nil {
			element = ctx.Element.Data
		}
		got := []string{ctx.Kind.String(), element, ctx.Attribute, ctx.Word}
		want := []string{tt.kind.String(), tt.element, tt.attr, tt.word}
		if !slices.Equal(got, want) {
			t.Errorf("At(%d, %d) = %q, want %q", tt.line, tt.col, got, want)
		}
	}
}

func TestAtUnterminated(t *testing.T) {
	text := "<stage>\n\t<sprite x=\"0\" "
	doc := Parse(text)
	ctx := doc.At(1, len("\t<sprite x=\"0\" "))
	if ctx.Kind != InTag || !ctx.StartTag {
		t.Fatalf("At = %v (start tag %v), want in tag", ctx.Kind, ctx.StartTag)
	}
	if ctx.Element == nil || ctx.Element.Data != "sprite" {
		t.Fatalf("Element = %v, want sprite", ctx.Element)
	}
}

func TestAtEndTagIsNotStartTag(t *testing.T) {
	doc := Parse("<stage></stage>")
	ctx := doc.At(0, 9)
	if ctx.StartTag {
		t.Error("StartTag = true in an end tag")
	}
}

func TestRules(t *testing.T) {
	src := "# Exactly one.\nstage count 1\n\n# dangling comment\n\nsprite@type ~ ^(none|beat|loop)$\n"
	rules, err := ParseRules(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	type ruleView struct {
		Line                          int
		Selector, Attr, Op, Want, Msg string
	}
	var got []ruleView
	for _, r := range rules {
		got = append(got, ruleView{r.Line, r.Selector, r.Attr, r.Op, r.Want, r.Message})
	}
	want := []ruleView{
		{2, "stage", "", "count", "1", "Exactly one."},
		{6, "sprite", "type", "~", "^(none|beat|loop)$", ""},
	}
	diff.Test(t, t.Errorf, got, want)
}

func TestRuleErrors(t *testing.T) {
	tests := []struct {
		src  string
		line int
		want string
	}{
		{" stage count 1", 1, "unexpected whitespace at start of line"},
		{"# ok\n\tstage count 1", 2, "unexpected whitespace at start of line"},
		{"stage", 1, "missing operator"},
		{"stage bogus 1", 1, `unknown operator "bogus"`},
		{"stage count x", 1, `count wants a non-negative integer, got "x"`},
		{"stage count -1", 1, `count wants a non-negative integer, got "-1"`},
		{"sprite has", 1, "has wants an attribute name"},
		{"sprite@type count 1", 1, "count does not take an @attr selector"},
		{"sprite == x", 1, "== needs an @attr selector"},
		{"sprite@type ==", 1, "non-regex comparison requires non-empty want value"},
		{"sprite@type ~ (", 1, "error compiling regex `(`"},
	}
	for _, tt := range tests {
		_, err := ParseRules(strings.NewReader(tt.src))
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("ParseRules(%q): err = %v, want *SyntaxError", tt.src, err)
			continue
		}
		if se.Line != tt.line {
			t.Errorf("ParseRules(%q): line = %d, want %d", tt.src, se.Line, tt.line)
		}
		if !strings.HasPrefix(se.Message, tt.want) {
			t.Errorf("ParseRules(%q): message = %q, want prefix %q", tt.src, se.Message, tt.want)
		}
	}
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	if len(rules) == 0 {
		t.Fatal("no default rules")
	}
	if rules[0].Selector != "stage" || rules[0].Op != "count" {
		t.Errorf("first rule = %s %s, want stage count", rules[0].Selector, rules[0].Op)
	}
}

func TestLint(t *testing.T) {
	got := Lint(Parse(week1), DefaultRules())
	want := []Problem{{
		Line:    3,
		Col:     1,
		Message: `Sprites need an image to show. (<sprite> is missing attribute "sprite")`,
		Rule:    5,
	}}
	diff.Test(t, t.Errorf, got, want)
}

func TestLintOperators(t *testing.T) {
	doc := Parse(`<stage>
<sprite name="a" sprite="a" type="loop"/>
<sprite name="b" sprite="b" type="sometimes"/>
<solid name="floor" color="#000000"/>
</stage>`)
	tests := []struct {
		rule string
		want []string
	}{
		{"stage count 1", nil},
		{"sprite count 1", []string{"2:1: sprite matches 2 element(s), want 1"}},
		{"anim count 1", []string{"1:1: anim matches 0 element(s), want 1"}},
		{"solid has width", []string{`4:1: <solid> is missing attribute "width"`}},
		{"sprite@type ~ ^(none|beat|loop)$", []string{"3:1: <sprite type> = \"sometimes\" does not match `^(none|beat|loop)$`"}},
		{"sprite@type !~ ^loop$", []string{"2:1: <sprite type> = \"loop\" matches `^loop$` (but should not)"}},
		{"sprite@name == a", []string{"3:1: <sprite name> = `b`, want `a`"}},
		{"sprite@name != a", []string{"2:1: <sprite name> == `a` (but should not)"}},
		{"solid@color contains FFF", []string{"4:1: <solid color> = \"#000000\" does not contain `FFF`"}},
		{"solid@color !contains 000", []string{"4:1: <solid color> = \"#000000\" contains `000` (but should not)"}},
		{"sprite@missing == x", nil},
		{"stage>solid count 1", nil},
	}
	for _, tt := range tests {
		rules, err := ParseRules(strings.NewReader(tt.rule))
		if err != nil {
			t.Fatalf("%q: %v", tt.rule, err)
		}
		var got []string
		for _, p := range Lint(doc, rules) {
			got = append(got, p.String())
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%q:\ngot  %q\nwant %q", tt.rule, got, tt.want)
		}
	}
}

func TestLintIncludesParseProblems(t *testing.T) {
	got := Lint(Parse("<stage></sprite></stage>"), nil)
	if len(got) != 1 || got[0].Message != "unexpected </sprite>" || got[0].Rule != 0 {
		t.Errorf("Lint = %v, want the parse problem", got)
	}
}
