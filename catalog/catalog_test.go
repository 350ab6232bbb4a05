package catalog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()

	cb, ok := c.Callback("onPlayerHit")
	require.True(t, ok)
	assert.Equal(t, "NoteHitEvent", cb.Event)
	assert.Equal(t, "onPlayerHit(event:NoteHitEvent)", cb.Signature())
	assert.Equal(t, "function onPlayerHit(event:NoteHitEvent) {\n\t$0\n}", cb.Stub())

	create, ok := c.Callback("create")
	require.True(t, ok)
	assert.Equal(t, "function create() {\n\t$0\n}", create.Stub())

	_, ok = c.Event("NoteHitEvent")
	assert.True(t, ok)
	_, ok = c.Type("FlxSprite")
	assert.True(t, ok)
	_, ok = c.Callback("nope")
	assert.False(t, ok)
}

func TestDefaultEventsExist(t *testing.T) {
	c := Default()
	for _, cb := range c.Callbacks() {
		if cb.Event == "" {
			continue
		}
		_, ok := c.Event(cb.Event)
		assert.True(t, ok, "callback %s names unknown event %s", cb.Name, cb.Event)
	}
}

func TestDefaultSnippets(t *testing.T) {
	names, err := Default().Names("snippets")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Animated Sprite",
		"Animated Sprite (Compact)",
		"Create Stage",
		"High Memory Block",
		"Opponent Character Position",
		"Player Character Position",
		"Solid Sprite",
		"Spectator Character Position",
		"Sprite Animation",
		"Sprite Animation With Indices",
		"Static Sprite",
		"Static Sprite (Compact)",
	}, names)

	for _, s := range Default().Snippets() {
		assert.Equal(t, "Stage", s.Prefix)
		assert.Contains(t, s.Body, "$0", "snippet %q", s.Name)
	}
}

func TestElementLookupIgnoresCase(t *testing.T) {
	c := Default()
	e, ok := c.Element("SPRITE")
	require.True(t, ok)
	assert.Equal(t, "sprite", e.Name)

	a, ok := c.Attribute("sprite", "flipx")
	require.True(t, ok)
	assert.Equal(t, "flipX", a.Name)
	assert.Equal(t, "false", a.Default)

	_, ok = c.Attribute("sprite", "nope")
	assert.False(t, ok)
	_, ok = c.Attribute("nope", "x")
	assert.False(t, ok)
}

func TestLoadOverride(t *testing.T) {
	fsys := fstest.MapFS{
		"types.json": {Data: []byte(`[{"name": "MyThing", "package": "mod", "doc": "Mine."}]`)},
	}
	c, err := Load(fsys)
	require.NoError(t, err)

	ty, ok := c.Type("MyThing")
	require.True(t, ok)
	assert.Equal(t, "import mod.MyThing;", ty.Import())
	_, ok = c.Type("FlxSprite")
	assert.False(t, ok, "override replaces the whole table")

	_, ok = c.Callback("create")
	assert.True(t, ok, "missing tables fall back to the defaults")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
		want string
	}{
		{
			name: "malformed",
			fsys: fstest.MapFS{"events.json": {Data: []byte(`{`)}},
			want: "catalog: events.json:",
		},
		{
			name: "duplicate",
			fsys: fstest.MapFS{"callbacks.json": {Data: []byte(`[{"name": "a"}, {"name": "a"}]`)}},
			want: `catalog: callbacks.json: duplicate name "a"`,
		},
		{
			name: "unnamed",
			fsys: fstest.MapFS{"stage.json": {Data: []byte(`[{"doc": "x"}]`)}},
			want: "catalog: stage.json: entry 0 has no name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.fsys)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNamesUnknownTable(t *testing.T) {
	_, err := Default().Names("widgets")
	assert.EqualError(t, err, `catalog: unknown table "widgets"`)
}

func TestMarkdown(t *testing.T) {
	c := Default()

	cb, _ := c.Callback("beatHit")
	md := cb.Markdown()
	assert.True(t, strings.HasPrefix(md, "```haxe\nfunction beatHit(curBeat:Int)\n```"), md)

	ev, _ := c.Event("NoteHitEvent")
	md = ev.Markdown()
	assert.Contains(t, md, "- `healthGain:Float`")
	assert.Contains(t, md, "event.cancel()")

	el, _ := c.Element("solid")
	assert.Contains(t, el.Markdown(), "- `color` (default `#FFFFFF`)")

	a, _ := c.Attribute("stage", "zoom")
	assert.Equal(t, "**zoom**\n\nDefault camera zoom.\n\nDefault: `1`", a.Markdown())
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loaded := make(chan *Catalog, 1)
	done := make(chan error, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	go func() {
		done <- Watch(ctx, dir, logger, func(c *Catalog) {
			select {
			case loaded <- c:
			default:
			}
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	data := `[{"name": "Watched", "package": "mod", "doc": "From disk."}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.json"), []byte(data), 0o644))

	select {
	case c := <-loaded:
		_, ok := c.Type("Watched")
		assert.True(t, ok)
	case err := <-done:
		t.Fatalf("Watch returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after writing types.json")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatchMissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), logger, func(*Catalog) {})
	assert.Error(t, err)
}
