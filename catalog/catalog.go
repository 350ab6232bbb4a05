// Package catalog holds the static lookup tables behind completion and hover:
// script callbacks, event classes, commonly used types, stage XML elements
// and stage XML snippets.
//
// A Catalog is immutable once loaded. Tables are read from JSON files:
//
//	callbacks.json  []Callback
//	events.json     []Event
//	types.json      []Type
//	stage.json      []Element
//	snippets.json   []Snippet
//
// The package embeds a default copy of each. [Load] reads the tables from a
// directory, falling back to the embedded copy for any file it lacks, so a
// mod can override or extend a single table.
package catalog

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
)

//go:embed data/*.json
var embedded embed.FS

// Param is a parameter of a callback.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Callback is a function the engine calls on a script if the script
// declares it.
type Callback struct {
	Name    string   `json:"name"`
	Params  []Param  `json:"params,omitempty"`
	Event   string   `json:"event,omitempty"` // event class of the parameter, if any
	Doc     string   `json:"doc"`
	Scripts []string `json:"scripts,omitempty"` // script kinds that receive it
}

// Field is a field of an event.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Doc  string `json:"doc,omitempty"`
}

// Event is an event class passed to callbacks.
type Event struct {
	Name        string  `json:"name"`
	Doc         string  `json:"doc"`
	Fields      []Field `json:"fields,omitempty"`
	Cancellable bool    `json:"cancellable,omitempty"`
}

// Type is a class scripts commonly use.
type Type struct {
	Name    string `json:"name"`
	Package string `json:"package"`
	Doc     string `json:"doc"`
}

// Attribute is an attribute of a stage element.
type Attribute struct {
	Name    string `json:"name"`
	Doc     string `json:"doc"`
	Default string `json:"default,omitempty"`
}

// Element is a stage XML element.
type Element struct {
	Name       string      `json:"name"`
	Doc        string      `json:"doc"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Snippet is a stage XML completion snippet. Body uses the editor snippet
// syntax, with $0 marking the final cursor position.
type Snippet struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
	Doc    string `json:"doc"`
	Body   string `json:"body"`
}

// Catalog is an immutable set of lookup tables.
type Catalog struct {
	callbacks []Callback
	events    []Event
	types     []Type
	elements  []Element
	snippets  []Snippet

	byCallback map[string]int
	byEvent    map[string]int
	byType     map[string]int
	byElement  map[string]int // lowercased, as the stage tokenizer reports names
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Load(nil)
	if err != nil {
		panic("catalog: embedded data: " + err.Error())
	}
	return c
}

// Load reads the tables from fsys. A table missing from fsys, or every table
// when fsys is nil, is read from the embedded defaults.
func Load(fsys fs.FS) (*Catalog, error) {
	c := new(Catalog)
	var err error
	if c.callbacks, err = loadTable[Callback](fsys, "callbacks.json"); err != nil {
		return nil, err
	}
	if c.events, err = loadTable[Event](fsys, "events.json"); err != nil {
		return nil, err
	}
	if c.types, err = loadTable[Type](fsys, "types.json"); err != nil {
		return nil, err
	}
	if c.elements, err = loadTable[Element](fsys, "stage.json"); err != nil {
		return nil, err
	}
	if c.snippets, err = loadTable[Snippet](fsys, "snippets.json"); err != nil {
		return nil, err
	}

	if c.byCallback, err = index("callbacks.json", c.callbacks, func(v Callback) string { return v.Name }); err != nil {
		return nil, err
	}
	if c.byEvent, err = index("events.json", c.events, func(v Event) string { return v.Name }); err != nil {
		return nil, err
	}
	if c.byType, err = index("types.json", c.types, func(v Type) string { return v.Name }); err != nil {
		return nil, err
	}
	if c.byElement, err = index("stage.json", c.elements, func(v Element) string { return strings.ToLower(v.Name) }); err != nil {
		return nil, err
	}
	if _, err = index("snippets.json", c.snippets, func(v Snippet) string { return v.Name }); err != nil {
		return nil, err
	}
	return c, nil
}

func loadTable[T any](fsys fs.FS, name string) ([]T, error) {
	var data []byte
	var err error
	if fsys != nil {
		data, err = fs.ReadFile(fsys, name)
	}
	if fsys == nil || errors.Is(err, fs.ErrNotExist) {
		data, err = embedded.ReadFile("data/" + name)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", name, err)
	}
	var table []T
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("catalog: %s: %w", name, err)
	}
	return table, nil
}

func index[T any](file string, table []T, key func(T) string) (map[string]int, error) {
	m := make(map[string]int, len(table))
	for i, v := range table {
		k := key(v)
		if k == "" {
			return nil, fmt.Errorf("catalog: %s: entry %d has no name", file, i)
		}
		if _, dup := m[k]; dup {
			return nil, fmt.Errorf("catalog: %s: duplicate name %q", file, k)
		}
		m[k] = i
	}
	return m, nil
}

// Callback returns the callback named name.
func (c *Catalog) Callback(name string) (Callback, bool) {
	return lookup(c.callbacks, c.byCallback, name)
}

// Event returns the event class named name.
func (c *Catalog) Event(name string) (Event, bool) {
	return lookup(c.events, c.byEvent, name)
}

// Type returns the type named name.
func (c *Catalog) Type(name string) (Type, bool) {
	return lookup(c.types, c.byType, name)
}

// Element returns the stage element named name, ignoring case.
func (c *Catalog) Element(name string) (Element, bool) {
	return lookup(c.elements, c.byElement, strings.ToLower(name))
}

// Attribute returns the attribute attr of the stage element named element,
// ignoring case.
func (c *Catalog) Attribute(element, attr string) (Attribute, bool) {
	e, ok := c.Element(element)
	if !ok {
		return Attribute{}, false
	}
	for _, a := range e.Attributes {
		if strings.EqualFold(a.Name, attr) {
			return a, true
		}
	}
	return Attribute{}, false
}

func lookup[T any](table []T, idx map[string]int, name string) (T, bool) {
	i, ok := idx[name]
	if !ok {
		var zero T
		return zero, false
	}
	return table[i], true
}

// Callbacks returns the callbacks in file order.
func (c *Catalog) Callbacks() []Callback { return slices.Clone(c.callbacks) }

// Events returns the event classes in file order.
func (c *Catalog) Events() []Event { return slices.Clone(c.events) }

// Types returns the types in file order.
func (c *Catalog) Types() []Type { return slices.Clone(c.types) }

// Elements returns the stage elements in file order.
func (c *Catalog) Elements() []Element { return slices.Clone(c.elements) }

// Snippets returns the stage snippets in file order.
func (c *Catalog) Snippets() []Snippet { return slices.Clone(c.snippets) }

// Tables names the tables of a catalog.
var Tables = []string{"callbacks", "events", "types", "elements", "snippets"}

// Names returns the sorted names of table, which is one of [Tables].
func (c *Catalog) Names(table string) ([]string, error) {
	var names []string
	switch table {
	case "callbacks":
		for _, v := range c.callbacks {
			names = append(names, v.Name)
		}
	case "events":
		for _, v := range c.events {
			names = append(names, v.Name)
		}
	case "types":
		for _, v := range c.types {
			names = append(names, v.Name)
		}
	case "elements":
		for _, v := range c.elements {
			names = append(names, v.Name)
		}
	case "snippets":
		for _, v := range c.snippets {
			names = append(names, v.Name)
		}
	default:
		return nil, fmt.Errorf("catalog: unknown table %q", table)
	}
	slices.Sort(names)
	return names, nil
}
