package main

import (
	"fmt"
	"strings"

	"codename.dev/cnels"
	"codename.dev/cnels/catalog"
	"codename.dev/cnels/internal/config"
	"codename.dev/cnels/stagexml"
)

// A provider answers completion and hover requests for one kind of document.
type provider interface {
	completions(doc *document, pos position) []completionItem
	hover(doc *document, pos position) (*hoverResult, bool)
}

// providerFor returns the provider for doc's language, or nil.
func (s *server) providerFor(doc *document) provider {
	cat := s.catalog.Load()
	switch doc.lang {
	case config.Haxe:
		return haxeProvider{catalog: cat, detector: s.detector}
	case config.Stage:
		return stageProvider{catalog: cat}
	}
	return nil
}

// Haxe scripts

const callbackLabel = "[Codename Callback] "

type haxeProvider struct {
	catalog  *catalog.Catalog
	detector cnels.Detector
}

// completions offers callback declarations at the top level of a script and
// the types scripts use once inside a function body.
func (p haxeProvider) completions(doc *document, pos position) []completionItem {
	at := cnels.Position{Line: pos.Line, Column: doc.column(pos)}
	if p.detector.InsideFunctionBody(doc.buf, at) {
		return p.bodyItems()
	}
	var items []completionItem
	for _, cb := range p.catalog.Callbacks() {
		items = append(items, completionItem{
			Label:            callbackLabel + cb.Name,
			Kind:             kindSnippet,
			Detail:           cb.Signature(),
			Documentation:    markdown(cb.Markdown()),
			FilterText:       cb.Name,
			InsertText:       cb.Stub(),
			InsertTextFormat: formatSnippet,
		})
	}
	return items
}

func (p haxeProvider) bodyItems() []completionItem {
	var items []completionItem
	seen := make(map[string]bool)
	for _, t := range p.catalog.Types() {
		seen[t.Name] = true
		items = append(items, completionItem{
			Label:         t.Name,
			Kind:          kindClass,
			Detail:        t.Import(),
			Documentation: markdown(t.Markdown()),
		})
	}
	for _, e := range p.catalog.Events() {
		if seen[e.Name] {
			continue
		}
		items = append(items, completionItem{
			Label:         e.Name,
			Kind:          kindEvent,
			Detail:        "event",
			Documentation: markdown(e.Markdown()),
		})
	}
	return items
}

// hover looks the word under the cursor up as a callback, then an event,
// then a type.
func (p haxeProvider) hover(doc *document, pos position) (*hoverResult, bool) {
	word, rng, ok := doc.wordAt(pos)
	if !ok {
		return nil, false
	}
	var md string
	if cb, ok := p.catalog.Callback(word); ok {
		md = cb.Markdown()
	} else if e, ok := p.catalog.Event(word); ok {
		md = e.Markdown()
	} else if t, ok := p.catalog.Type(word); ok {
		md = t.Markdown()
	} else {
		return nil, false
	}
	return &hoverResult{Contents: *markdown(md), Range: &rng}, true
}

// Stage files

type stageProvider struct {
	catalog *catalog.Catalog
}

// completions offers every stage snippet. In a start tag, the element's
// missing attributes come first.
func (p stageProvider) completions(doc *document, pos position) []completionItem {
	var items []completionItem
	ctx := doc.stage.At(pos.Line, doc.column(pos))
	if ctx.StartTag && ctx.Element != nil && (ctx.Kind == stagexml.InTag || ctx.Kind == stagexml.AttributeName) {
		items = append(items, p.attributeItems(ctx)...)
	}
	for _, sn := range p.catalog.Snippets() {
		items = append(items, completionItem{
			Label:            "[Codename " + sn.Prefix + "] " + sn.Name,
			Kind:             kindSnippet,
			Detail:           "Codename Engine " + sn.Prefix + " XML Snippet",
			Documentation:    markdown(sn.Doc),
			SortText:         "1" + sn.Name,
			InsertText:       sn.Body,
			InsertTextFormat: formatSnippet,
		})
	}
	return items
}

func (p stageProvider) attributeItems(ctx stagexml.Context) []completionItem {
	el, ok := p.catalog.Element(ctx.Element.Data)
	if !ok {
		return nil
	}
	var items []completionItem
	for _, a := range el.Attributes {
		// The attribute being typed is not yet present.
		if _, present := stagexml.Attr(ctx.Element, a.Name); present && !strings.EqualFold(a.Name, ctx.Attribute) {
			continue
		}
		items = append(items, completionItem{
			Label:            a.Name,
			Kind:             kindProperty,
			Detail:           fmt.Sprintf("<%s> attribute", el.Name),
			Documentation:    markdown(a.Markdown()),
			SortText:         "0" + a.Name,
			InsertText:       a.Name + `="${1:` + snippetEscaper.Replace(a.Default) + `}"`,
			InsertTextFormat: formatSnippet,
		})
	}
	return items
}

var snippetEscaper = strings.NewReplacer(`\`, `\\`, `$`, `\$`, `}`, `\}`)

// hover documents the element or attribute name under the cursor.
func (p stageProvider) hover(doc *document, pos position) (*hoverResult, bool) {
	ctx := doc.stage.At(pos.Line, doc.column(pos))
	if ctx.Element == nil {
		return nil, false
	}
	var md string
	switch ctx.Kind {
	case stagexml.ElementName:
		el, ok := p.catalog.Element(ctx.Element.Data)
		if !ok {
			return nil, false
		}
		md = el.Markdown()
	case stagexml.AttributeName, stagexml.AttributeValue:
		a, ok := p.catalog.Attribute(ctx.Element.Data, ctx.Attribute)
		if !ok {
			return nil, false
		}
		md = a.Markdown()
	default:
		return nil, false
	}
	return &hoverResult{Contents: *markdown(md)}, true
}
