// Package manifest handles bridge.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "bridge.toml"

// Manifest represents a bridge.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Build        Build                 `toml:"build"`
	Classpath    Classpath             `toml:"classpath"`
	Dependencies map[string]Dependency `toml:"dependencies"`

	// Dir is the directory containing the bridge.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
	// APIVersion is the version of the bridge marker runtime the project
	// compiles against.
	APIVersion string `toml:"api_version"`
}

// Build configures which classes are rewritten and how.
type Build struct {
	Classes  string   `toml:"classes"`
	Includes []string `toml:"includes"`
	Excludes []string `toml:"excludes"`
	Flags    []string `toml:"flags"`
	Jobs     int      `toml:"jobs"`
	State    string   `toml:"state"`
	Output   string   `toml:"output"` // optional CBOR run report
}

// Classpath lists where the class hierarchy outside the project comes from.
type Classpath struct {
	Entries    []string `toml:"entries"`
	JDK        string   `toml:"jdk"`
	Repository string   `toml:"repository"` // local Maven repository for coordinate dependencies
}

// Dependency is an additional archive added to the hierarchy, either a local
// path or a groupId:artifactId:version[:type[:classifier]] coordinate.
type Dependency struct {
	Path       string `toml:"path"`
	Coordinate string `toml:"coordinate"`
}

// Default returns the configuration used when no bridge.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.defaults()
	return m
}

func (m *Manifest) defaults() {
	if m.Build.Classes == "" {
		m.Build.Classes = filepath.Join("target", "classes")
	}
	if m.Build.Jobs <= 0 {
		m.Build.Jobs = runtime.GOMAXPROCS(0)
	}
	if m.Build.State == "" {
		m.Build.State = filepath.Join(".bridge", "state.cbor")
	}
	if m.Classpath.JDK == "" {
		m.Classpath.JDK = os.Getenv("JAVA_HOME")
	}
}

// Load parses a bridge.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.defaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a bridge.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Path resolves p against the manifest directory.
func (m *Manifest) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// ClassesDir returns the absolute classes directory.
func (m *Manifest) ClassesDir() string {
	return m.Path(m.Build.Classes)
}

// StatePath returns the absolute path of the build state file.
func (m *Manifest) StatePath() string {
	return m.Path(m.Build.State)
}

// EntryPaths returns absolute paths for the configured classpath entries.
func (m *Manifest) EntryPaths() []string {
	var paths []string
	for _, e := range m.Classpath.Entries {
		paths = append(paths, m.Path(e))
	}
	return paths
}
