package main

import (
	"slices"
	"strings"
	"testing"
	"testing/fstest"

	"codename.dev/cnels"
	"codename.dev/cnels/catalog"
	"codename.dev/cnels/internal/config"
	"kr.dev/diff"
)

const script = `import flixel.FlxSprite;

var bg:FlxSprite;

function create() {
	bg = new FlxSprite();

}

function onPlayerHit(event:NoteHitEvent) {
	trace("}");
}
`

func labels(items []completionItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Label)
	}
	return out
}

func TestHaxeCompletions(t *testing.T) {
	doc := newDocument("file:///song/script.hx", config.Haxe, script)
	p := haxeProvider{catalog: catalog.Default()}

	tests := []struct {
		line      int
		wantStubs bool
	}{
		{0, true},
		{3, true},
		{4, true}, // the declaration line
		{5, false},
		{6, false},
		{7, true}, // the closing brace
		{8, true},
		{10, false},
		{12, true},
	}
	for _, tt := range tests {
		items := p.completions(doc, position{Line: tt.line})
		hasStub := slices.Contains(labels(items), "[Codename Callback] create")
		hasType := slices.Contains(labels(items), "FlxSprite")
		if hasStub != tt.wantStubs || hasType == tt.wantStubs {
			t.Errorf("line %d: stubs=%v types=%v, want stubs=%v", tt.line, hasStub, hasType, tt.wantStubs)
		}
	}
}

func TestHaxeCompletionItem(t *testing.T) {
	doc := newDocument("file:///s.hx", config.Haxe, "")
	p := haxeProvider{catalog: catalog.Default()}
	items := p.completions(doc, position{})

	i := slices.IndexFunc(items, func(it completionItem) bool {
		return it.Label == "[Codename Callback] onPlayerHit"
	})
	if i < 0 {
		t.Fatalf("no onPlayerHit item in %q", labels(items))
	}
	got := items[i]
	got.Documentation = nil
	want := completionItem{
		Label:            "[Codename Callback] onPlayerHit",
		Kind:             kindSnippet,
		Detail:           "onPlayerHit(event:NoteHitEvent)",
		FilterText:       "onPlayerHit",
		InsertText:       "function onPlayerHit(event:NoteHitEvent) {\n\t$0\n}",
		InsertTextFormat: formatSnippet,
	}
	diff.Test(t, t.Errorf, got, want)
	if len(items) != len(catalog.Default().Callbacks()) {
		t.Errorf("got %d items, want one per callback", len(items))
	}
}

func TestHaxeBodyCompletionsIncludeEvents(t *testing.T) {
	doc := newDocument("file:///s.hx", config.Haxe, "function update(elapsed:Float) {\n\t\n}")
	p := haxeProvider{catalog: catalog.Default()}
	items := p.completions(doc, position{Line: 1, Character: 1})

	i := slices.IndexFunc(items, func(it completionItem) bool { return it.Label == "NoteHitEvent" })
	if i < 0 {
		t.Fatal("no NoteHitEvent item")
	}
	if items[i].Kind != kindEvent {
		t.Errorf("NoteHitEvent kind = %d, want %d", items[i].Kind, kindEvent)
	}
}

func TestHaxeLiteralBraces(t *testing.T) {
	// The "}" in the string closes the body unless literals are masked.
	doc := newDocument("file:///s.hx", config.Haxe, "function create() {\n\ttrace(\"}\");\n\n}\n")
	pos := position{Line: 2}

	masked := haxeProvider{catalog: catalog.Default()}
	if slices.Contains(labels(masked.completions(doc, pos)), "[Codename Callback] create") {
		t.Error("masked: offered callback stubs inside a body")
	}
	raw := haxeProvider{catalog: catalog.Default(), detector: cnels.Detector{CountLiteralBraces: true}}
	if !slices.Contains(labels(raw.completions(doc, pos)), "[Codename Callback] create") {
		t.Error("raw: no callback stubs after the string brace")
	}
}

func TestHaxeHover(t *testing.T) {
	doc := newDocument("file:///s.hx", config.Haxe, script)
	p := haxeProvider{catalog: catalog.Default()}

	tests := []struct {
		line, char int
		want       string // prefix of the markdown
	}{
		{4, 10, "```haxe\nfunction create()"},
		{9, 30, "```haxe\nclass NoteHitEvent"},
		{2, 8, "```haxe\nimport flixel.FlxSprite;"},
		{9, 0, ""}, // "function" is not in the catalog
		{1, 0, ""},
	}
	for _, tt := range tests {
		h, ok := p.hover(doc, position{Line: tt.line, Character: tt.char})
		if tt.want == "" {
			if ok {
				t.Errorf("hover(%d, %d) = %q, want none", tt.line, tt.char, h.Contents.Value)
			}
			continue
		}
		if !ok {
			t.Errorf("hover(%d, %d): none, want %q", tt.line, tt.char, tt.want)
			continue
		}
		if !strings.HasPrefix(h.Contents.Value, tt.want) || h.Contents.Kind != "markdown" {
			t.Errorf("hover(%d, %d) = %q, want prefix %q", tt.line, tt.char, h.Contents.Value, tt.want)
		}
		if h.Range == nil || h.Range.Start.Line != tt.line {
			t.Errorf("hover(%d, %d): range = %v", tt.line, tt.char, h.Range)
		}
	}
}

func TestStageCompletions(t *testing.T) {
	doc := newDocument("file:///data/stages/s.xml", config.Stage, "<stage>\n\t\n</stage>\n")
	p := stageProvider{catalog: catalog.Default()}
	items := p.completions(doc, position{Line: 1, Character: 1})

	var want []string
	for _, sn := range catalog.Default().Snippets() {
		want = append(want, "[Codename Stage] "+sn.Name)
	}
	diff.Test(t, t.Errorf, labels(items), want)
	for _, it := range items {
		if it.Detail != "Codename Engine Stage XML Snippet" || it.Kind != kindSnippet || it.InsertTextFormat != formatSnippet {
			t.Errorf("%s: detail %q kind %d format %d", it.Label, it.Detail, it.Kind, it.InsertTextFormat)
		}
	}
}

func TestStageSnippetPrefix(t *testing.T) {
	cat, err := catalog.Load(fstest.MapFS{
		"snippets.json": {Data: []byte(`[{"prefix": "Character", "name": "Pose", "doc": "A pose.", "body": "<pose/>$0"}]`)},
	})
	if err != nil {
		t.Fatal(err)
	}
	doc := newDocument("file:///data/stages/s.xml", config.Stage, "")
	items := stageProvider{catalog: cat}.completions(doc, position{})
	if len(items) != 1 {
		t.Fatalf("got %q, want one snippet", labels(items))
	}
	if got, want := items[0].Label, "[Codename Character] Pose"; got != want {
		t.Errorf("label = %q, want %q", got, want)
	}
	if got, want := items[0].Detail, "Codename Engine Character XML Snippet"; got != want {
		t.Errorf("detail = %q, want %q", got, want)
	}
}

func TestStageAttributeCompletions(t *testing.T) {
	text := "<stage>\n\t<bf x=\"770\" y=\"100\" "
	doc := newDocument("file:///data/stages/s.xml", config.Stage, text)
	p := stageProvider{catalog: catalog.Default()}
	items := p.completions(doc, position{Line: 1, Character: len("\t<bf x=\"770\" y=\"100\" ")})

	var attrs []string
	for _, it := range items {
		if it.Kind == kindProperty {
			attrs = append(attrs, it.Label)
		}
	}
	want := []string{"alpha", "scale", "camxoffset", "camyoffset", "flipX", "scroll"}
	diff.Test(t, t.Errorf, attrs, want)
	if items[0].InsertText != `alpha="${1:1}"` {
		t.Errorf("insert text = %q", items[0].InsertText)
	}
	if n := len(items) - len(attrs); n != len(catalog.Default().Snippets()) {
		t.Errorf("got %d snippets after the attributes", n)
	}
}

func TestStageHover(t *testing.T) {
	text := "<stage>\n\t<sprite name=\"bg\" flipX=\"true\"/>\n</stage>\n"
	doc := newDocument("file:///data/stages/s.xml", config.Stage, text)
	p := stageProvider{catalog: catalog.Default()}

	tests := []struct {
		line, char int
		want       string
	}{
		{1, 3, "**<sprite>**"},
		{1, 20, "**flipX**"},
		{1, 27, "**flipX**"}, // in the value
		{0, 2, "**<stage>**"},
		{2, 0, ""}, // the end tag, before its name
	}
	for _, tt := range tests {
		h, ok := p.hover(doc, position{Line: tt.line, Character: tt.char})
		switch {
		case tt.want == "" && ok:
			t.Errorf("hover(%d, %d) = %q, want none", tt.line, tt.char, h.Contents.Value)
		case tt.want != "" && !ok:
			t.Errorf("hover(%d, %d): none, want %q", tt.line, tt.char, tt.want)
		case ok && !strings.HasPrefix(h.Contents.Value, tt.want):
			t.Errorf("hover(%d, %d) = %q, want prefix %q", tt.line, tt.char, h.Contents.Value, tt.want)
		}
	}
}
