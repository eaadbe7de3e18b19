package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vmasm.toml")
	content := `
output = "out.vmc"
entry  = "boot"
sources = [
  "a.vms",
  "b.vms",
]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Output != "out.vmc" {
		t.Errorf("Output = %q, want out.vmc", m.Output)
	}
	if m.Entry != "boot" {
		t.Errorf("Entry = %q, want boot", m.Entry)
	}
	if want := []string{"a.vms", "b.vms"}; !equalStrings(m.Sources, want) {
		t.Errorf("Sources = %v, want %v", m.Sources, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vmasm.toml")
	content := `sources = ["main.vms"]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Output != defaultOutput {
		t.Errorf("Output = %q, want %q", m.Output, defaultOutput)
	}
	if m.Entry != defaultEntry {
		t.Errorf("Entry = %q, want %q", m.Entry, defaultEntry)
	}
}

func TestLoadRequiresSources(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vmasm.toml")
	if err := os.WriteFile(path, []byte(`output = "a.vmc"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a manifest with no sources")
	}
}

func TestReadSourcesPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.vms": "main:\n    jmp done\n",
		"b.vms": "done:\n    halt\n",
	}
	var paths []string
	for _, name := range []string{"a.vms", "b.vms"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(files[name]), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}

	m := &Manifest{Sources: paths}
	sources, err := m.ReadSources()
	if err != nil {
		t.Fatalf("ReadSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[0].Text != files["a.vms"] {
		t.Errorf("sources[0].Text = %q, want %q", sources[0].Text, files["a.vms"])
	}
	if sources[1].Text != files["b.vms"] {
		t.Errorf("sources[1].Text = %q, want %q", sources[1].Text, files["b.vms"])
	}
}

func TestReadSourcesMissingFile(t *testing.T) {
	m := &Manifest{Sources: []string{"/nonexistent/path.vms"}}
	if _, err := m.ReadSources(); err == nil {
		t.Fatal("expected an error for a missing source file")
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
