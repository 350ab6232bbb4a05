package catalog

import (
	"fmt"
	"strings"
)

// Signature formats the callback as it is declared, without the function
// keyword:
//
//	onPlayerHit(event:NoteHitEvent)
func (cb Callback) Signature() string {
	var b strings.Builder
	b.WriteString(cb.Name)
	b.WriteByte('(')
	for i, p := range cb.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		if p.Type != "" {
			b.WriteByte(':')
			b.WriteString(p.Type)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Stub returns a snippet declaring the callback with an empty body.
func (cb Callback) Stub() string {
	return "function " + cb.Signature() + " {\n\t$0\n}"
}

// Markdown renders hover documentation for the callback.
func (cb Callback) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "```haxe\nfunction %s\n```\n\n%s", cb.Signature(), cb.Doc)
	if cb.Event != "" {
		fmt.Fprintf(&b, "\n\nReceives a `%s`.", cb.Event)
	}
	if len(cb.Scripts) > 0 {
		fmt.Fprintf(&b, "\n\nCalled on %s scripts.", strings.Join(cb.Scripts, ", "))
	}
	return b.String()
}

// Markdown renders hover documentation for the event, listing its fields.
func (e Event) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "```haxe\nclass %s\n```\n\n%s", e.Name, e.Doc)
	if len(e.Fields) > 0 {
		b.WriteString("\n")
		for _, f := range e.Fields {
			fmt.Fprintf(&b, "\n- `%s:%s`", f.Name, f.Type)
			if f.Doc != "" {
				b.WriteString(" ")
				b.WriteString(f.Doc)
			}
		}
	}
	if e.Cancellable {
		b.WriteString("\n\nCancellable with `event.cancel()`.")
	}
	return b.String()
}

// Import returns the import statement for the type.
func (t Type) Import() string {
	if t.Package == "" {
		return "import " + t.Name + ";"
	}
	return "import " + t.Package + "." + t.Name + ";"
}

// Markdown renders hover documentation for the type.
func (t Type) Markdown() string {
	return fmt.Sprintf("```haxe\n%s\n```\n\n%s", t.Import(), t.Doc)
}

// Markdown renders hover documentation for the element, listing its
// attributes.
func (e Element) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**<%s>**\n\n%s", e.Name, e.Doc)
	if len(e.Attributes) > 0 {
		b.WriteString("\n")
		for _, a := range e.Attributes {
			fmt.Fprintf(&b, "\n- `%s`", a.Name)
			if a.Default != "" {
				fmt.Fprintf(&b, " (default `%s`)", a.Default)
			}
		}
	}
	return b.String()
}

// Markdown renders hover documentation for the attribute.
func (a Attribute) Markdown() string {
	s := fmt.Sprintf("**%s**\n\n%s", a.Name, a.Doc)
	if a.Default != "" {
		s += fmt.Sprintf("\n\nDefault: `%s`", a.Default)
	}
	return s
}
