// Package manifest defines the stenv.yaml environment manifest: the named
// conda environment, the packages to install into it, and the demo command
// to launch once it is ready.
package manifest

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"stenv/internal/conda"
)

// DefaultFilename is the manifest filename looked up in the workspace.
const DefaultFilename = "stenv.yaml"

// Package is one package to install into the environment.
type Package struct {
	Name string `yaml:"name"`

	// Version pins the package ("1.31.0"); empty means latest.
	Version string `yaml:"version,omitempty"`

	// Via selects the installer: "pip" (default) or "conda".
	Via conda.InstallVia `yaml:"via,omitempty"`
}

// Spec returns the installer spec string (name or name==version for pip,
// name=version for conda).
func (p Package) Spec() string {
	if p.Version == "" {
		return p.Name
	}
	if p.Via == conda.ViaConda {
		return p.Name + "=" + p.Version
	}
	return p.Name + "==" + p.Version
}

// App is an optional tutorial app that can be launched after bootstrap
// with `streamlit run <file>`.
type App struct {
	Day  int    `yaml:"day,omitempty"`
	File string `yaml:"file"`
}

// Manifest describes the target environment.
type Manifest struct {
	// Name is the conda environment name.
	Name string `yaml:"name"`

	// Python is the interpreter version for environment creation.
	Python string `yaml:"python"`

	// Channels are extra conda channels.
	Channels []string `yaml:"channels,omitempty"`

	// Packages to install, in order.
	Packages []Package `yaml:"packages"`

	// Demo is the command launched after install (e.g., "streamlit hello").
	Demo string `yaml:"demo"`

	// Apps are tutorial scripts runnable inside the environment.
	Apps []App `yaml:"apps,omitempty"`
}

// Default returns the manifest for the Streamlit 30-day challenge demo.
func Default() *Manifest {
	return &Manifest{
		Name:   "stenv",
		Python: "3.9",
		Packages: []Package{
			{Name: "streamlit", Via: conda.ViaPip},
		},
		Demo: "streamlit hello",
		Apps: []App{
			{Day: 9, File: "st_line_chart.py"},
			{Day: 10, File: "st_selectbox.py"},
			{Day: 11, File: "st_multiselect.py"},
			{Day: 12, File: "st_checkbox.py"},
			{Day: 15, File: "st_latex.py"},
		},
	}
}

// Load reads a manifest from a YAML file.
// A missing file yields the default manifest.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Save writes the manifest to a YAML file.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// applyDefaults fills unset fields.
func (m *Manifest) applyDefaults() {
	if m.Python == "" {
		m.Python = "3.9"
	}
	for i := range m.Packages {
		if m.Packages[i].Via == "" {
			m.Packages[i].Via = conda.ViaPip
		}
	}
}

// Validate checks the manifest for usability.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest: environment name is required")
	}
	if strings.ContainsAny(m.Name, " /\\") {
		return fmt.Errorf("manifest: invalid environment name %q", m.Name)
	}
	if len(m.Packages) == 0 {
		return fmt.Errorf("manifest: at least one package is required")
	}
	for _, p := range m.Packages {
		if p.Name == "" {
			return fmt.Errorf("manifest: package with empty name")
		}
		if p.Via != "" && p.Via != conda.ViaPip && p.Via != conda.ViaConda {
			return fmt.Errorf("manifest: unknown installer %q for %s", p.Via, p.Name)
		}
	}
	if m.Demo == "" {
		return fmt.Errorf("manifest: demo command is required")
	}
	return nil
}

// DemoArgs splits the demo command into binary and arguments.
func (m *Manifest) DemoArgs() (string, []string) {
	fields := strings.Fields(m.Demo)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// PrimaryPackage returns the first package, the one whose presence decides
// idempotent re-runs.
func (m *Manifest) PrimaryPackage() Package {
	if len(m.Packages) == 0 {
		return Package{}
	}
	return m.Packages[0]
}
