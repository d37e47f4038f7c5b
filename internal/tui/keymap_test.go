package tui

import (
	"slices"
	"testing"

	"charm.land/bubbles/v2/key"
)

// TestParseBindingKeys verifies how configured key strings become matchers.
func TestParseBindingKeys(t *testing.T) {
	cases := []struct {
		raw, fallback string
		wantKeys      []string
		wantHelp      string
	}{
		{raw: "space", fallback: ".", wantKeys: []string{" ", "space"}, wantHelp: "space"},
		{raw: "Z", fallback: "z", wantKeys: []string{"Z", "shift+z"}, wantHelp: "Z"},
		{raw: "Ctrl+R", fallback: "r", wantKeys: []string{"ctrl+r"}, wantHelp: "Ctrl+R"},
		{raw: "", fallback: "x", wantKeys: []string{"x"}, wantHelp: "x"},
		{raw: "  /  ", fallback: "s", wantKeys: []string{"/"}, wantHelp: "/"},
	}
	for _, tc := range cases {
		keys, help := parseBindingKeys(tc.raw, tc.fallback)
		if !slices.Equal(keys, tc.wantKeys) || help != tc.wantHelp {
			t.Fatalf("parseBindingKeys(%q, %q) = %#v, %q; want %#v, %q", tc.raw, tc.fallback, keys, help, tc.wantKeys, tc.wantHelp)
		}
	}
}

// TestConfigureBinding verifies binding override application behavior.
func TestConfigureBinding(t *testing.T) {
	b := key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "old"))
	configureBinding(&b, "Y", "y", "copy row")
	keys := b.Keys()
	if len(keys) != 2 || keys[0] != "Y" || keys[1] != "shift+y" {
		t.Fatalf("unexpected configured keys %#v", keys)
	}
	if b.Help().Key != "Y" || b.Help().Desc != "copy row" {
		t.Fatalf("unexpected configured help %#v", b.Help())
	}
}

// TestKeyMapApplyConfig verifies dynamic key map override behavior.
func TestKeyMapApplyConfig(t *testing.T) {
	k := newKeyMap()
	k.applyConfig(KeyConfig{
		Search:  "ctrl+f",
		Select:  "x",
		Drag:    "M",
		Copy:    "",
		Columns: "C",
	})

	assertKeys := func(name string, binding key.Binding, expected ...string) {
		t.Helper()
		got := binding.Keys()
		if len(got) != len(expected) {
			t.Fatalf("%s key count mismatch got=%#v expected=%#v", name, got, expected)
		}
		for i := range expected {
			if got[i] != expected[i] {
				t.Fatalf("%s key mismatch got=%#v expected=%#v", name, got, expected)
			}
		}
	}

	assertKeys("search", k.search, "ctrl+f")
	assertKeys("select", k.selectRow, "x")
	assertKeys("select all", k.selectAll, "A", "shift+a")
	assertKeys("drag", k.drag, "M", "shift+m")
	assertKeys("copy", k.copyRow, "y")
	assertKeys("columns", k.columns, "C", "shift+c")
}

// TestKeyMapHelpCoversBindings verifies every help group is populated.
func TestKeyMapHelpCoversBindings(t *testing.T) {
	k := newKeyMap()
	if len(k.ShortHelp()) == 0 {
		t.Fatal("expected short help bindings")
	}
	total := 0
	for _, group := range k.FullHelp() {
		total += len(group)
	}
	if total < 25 {
		t.Fatalf("expected full help to list the table bindings, got %d", total)
	}
}
