package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"stenv/internal/conda"
)

func TestDefaultManifest(t *testing.T) {
	m := Default()
	if err := m.Validate(); err != nil {
		t.Fatalf("default manifest invalid: %v", err)
	}
	if m.Name != "stenv" {
		t.Fatalf("unexpected env name: %s", m.Name)
	}
	if m.PrimaryPackage().Name != "streamlit" {
		t.Fatalf("unexpected primary package: %s", m.PrimaryPackage().Name)
	}

	binary, args := m.DemoArgs()
	if binary != "streamlit" || len(args) != 1 || args[0] != "hello" {
		t.Fatalf("unexpected demo command: %s %v", binary, args)
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "stenv.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if diff := cmp.Diff(Default(), m); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stenv.yaml")
	content := `name: demo
packages:
  - name: streamlit
demo: streamlit hello
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Python != "3.9" {
		t.Fatalf("python default not applied: %q", m.Python)
	}
	if m.Packages[0].Via != conda.ViaPip {
		t.Fatalf("installer default not applied: %q", m.Packages[0].Via)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", "packages:\n  - name: streamlit\ndemo: streamlit hello\n"},
		{"no packages", "name: demo\ndemo: streamlit hello\n"},
		{"missing demo", "name: demo\npackages:\n  - name: streamlit\n"},
		{"bad installer", "name: demo\npackages:\n  - name: streamlit\n    via: brew\ndemo: streamlit hello\n"},
		{"name with space", "name: \"a b\"\npackages:\n  - name: streamlit\ndemo: streamlit hello\n"},
		{"broken yaml", "name: [oops"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stenv.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("write failed: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected load to fail")
			}
		})
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stenv.yaml")

	m := Default()
	m.Channels = []string{"conda-forge"}
	m.Packages = append(m.Packages, Package{Name: "pandas", Version: "2.2.0", Via: conda.ViaConda})
	if err := m.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if diff := cmp.Diff(m, loaded); diff != "" {
		t.Errorf("roundtrip mismatch (-want +got):\n%s", diff)
	}
}

func TestPackageSpec(t *testing.T) {
	cases := []struct {
		pkg  Package
		want string
	}{
		{Package{Name: "streamlit"}, "streamlit"},
		{Package{Name: "streamlit", Version: "1.31.0", Via: conda.ViaPip}, "streamlit==1.31.0"},
		{Package{Name: "pandas", Version: "2.2.0", Via: conda.ViaConda}, "pandas=2.2.0"},
	}
	for _, tc := range cases {
		if got := tc.pkg.Spec(); got != tc.want {
			t.Errorf("Spec(%+v) = %q, want %q", tc.pkg, got, tc.want)
		}
	}
}
