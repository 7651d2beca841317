package decode

import (
	"errors"
	"testing"

	"github.com/driftwood2d/resvfs/internal/vfs"
)

func replaceRegistry(t *testing.T) func() {
	t.Helper()
	prev := globalRegistry
	globalRegistry = newRegistry()
	return func() { globalRegistry = prev }
}

func TestRegisterResolveAndList(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(Decoder{Key: "beta", Decode: Raw}); err != nil {
		t.Fatalf("register beta failed: %v", err)
	}
	if err := Register(Decoder{Key: "Alpha", Decode: Raw}); err != nil {
		t.Fatalf("register alpha failed: %v", err)
	}

	if _, ok := Resolve("BETA"); !ok {
		t.Fatalf("resolve should be case-insensitive")
	}
	keys := Keys()
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "beta" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestRegisterRejectsDuplicateAndIncomplete(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(Decoder{Key: "raw", Decode: Raw}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := Register(Decoder{Key: "raw", Decode: Raw}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := Register(Decoder{Key: "  "}); err == nil {
		t.Fatalf("empty key should fail")
	}
	if err := Register(Decoder{Key: "nil"}); err == nil {
		t.Fatalf("missing decode func should fail")
	}
}

func TestBuiltinsRegistered(t *testing.T) {
	for _, key := range []string{"raw", "text", "json", "toml", "template"} {
		if _, ok := Resolve(key); !ok {
			t.Fatalf("builtin decoder %s missing", key)
		}
	}
}

func TestForPathMatchesExtension(t *testing.T) {
	cases := map[string]string{
		"levels/intro.json": "json",
		"settings.TOML":     "toml",
		"scripts/boot.lua":  "text",
		"sprites/hero.png":  "raw",
		"ui/greeting.tmpl":  "template",
		"noext":             "raw",
	}
	for name, want := range cases {
		if got := ForPath(vfs.MustParsePath(name)).Key; got != want {
			t.Fatalf("%s: expected %s, got %s", name, want, got)
		}
	}
}

func TestBuiltinDecoders(t *testing.T) {
	value, err := JSON([]byte(`{"tiles":[1,2]}`))
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	doc, ok := value.(map[string]any)
	if !ok || len(doc["tiles"].([]any)) != 2 {
		t.Fatalf("unexpected json value: %#v", value)
	}

	value, err = TOML([]byte("name = \"intro\"\n[size]\nw = 16\n"))
	if err != nil {
		t.Fatalf("toml: %v", err)
	}
	table := value.(map[string]any)
	if table["name"] != "intro" {
		t.Fatalf("unexpected toml value: %#v", value)
	}

	if _, err := JSON([]byte("{")); !errors.Is(err, vfs.ErrDecode) {
		t.Fatalf("expected ErrDecode from json, got %v", err)
	}
	if _, err := TOML([]byte("= broken")); !errors.Is(err, vfs.ErrDecode) {
		t.Fatalf("expected ErrDecode from toml, got %v", err)
	}
	if _, err := Text([]byte{0xff, 0xfe}); !errors.Is(err, vfs.ErrDecode) {
		t.Fatalf("expected ErrDecode from text, got %v", err)
	}

	src := []byte("abc")
	raw, _ := Raw(src)
	src[0] = 'x'
	if string(raw.([]byte)) != "abc" {
		t.Fatalf("raw decoder must copy input")
	}
}

func TestTemplateCompilesOnceRendersPerCall(t *testing.T) {
	value, err := Template([]byte("hello {{.name}}"))
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	for _, name := range []string{"alice", "bob"} {
		out, err := Render(value, map[string]string{"name": name})
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != "hello "+name {
			t.Fatalf("unexpected render %q", out)
		}
	}

	if _, err := Template([]byte("{{.broken")); !errors.Is(err, vfs.ErrDecode) {
		t.Fatalf("expected ErrDecode from template, got %v", err)
	}
	if _, err := Render("not a template", nil); !errors.Is(err, vfs.ErrDecode) {
		t.Fatalf("expected ErrDecode for non-template value, got %v", err)
	}
}
