package manifest

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a bridge.toml
	dir := t.TempDir()
	tomlContent := `
[project]
name = "test-app"
api_version = "3.1"

[build]
classes = "out/classes"
includes = ["net/**/*.class"]
excludes = ["**/Test*.class"]
flags = ["no-debug", "force recompile"]
jobs = 3

[classpath]
entries = ["lib/api.jar", "/opt/dep.jar"]
jdk = "/opt/jdk"

[dependencies]
helper = { path = "../helper.jar" }
guava = { coordinate = "com.google.guava:guava:33.0.0-jre" }
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.APIVersion != "3.1" {
		t.Errorf("api version = %q, want 3.1", m.Project.APIVersion)
	}
	if got, want := m.ClassesDir(), filepath.Join(m.Dir, "out", "classes"); got != want {
		t.Errorf("classes dir = %q, want %q", got, want)
	}
	if len(m.Build.Includes) != 1 || len(m.Build.Excludes) != 1 {
		t.Errorf("includes, excludes = %v, %v", m.Build.Includes, m.Build.Excludes)
	}
	if len(m.Build.Flags) != 2 {
		t.Errorf("flags = %v, want 2 words", m.Build.Flags)
	}
	if m.Build.Jobs != 3 {
		t.Errorf("jobs = %d, want 3", m.Build.Jobs)
	}
	paths := m.EntryPaths()
	if len(paths) != 2 || paths[0] != filepath.Join(m.Dir, "lib", "api.jar") || paths[1] != "/opt/dep.jar" {
		t.Errorf("entry paths = %v", paths)
	}
	if m.Classpath.JDK != "/opt/jdk" {
		t.Errorf("jdk = %q, want /opt/jdk", m.Classpath.JDK)
	}
	if len(m.Dependencies) != 2 {
		t.Errorf("dependencies count = %d, want 2", len(m.Dependencies))
	}
	if dep, ok := m.Dependencies["helper"]; !ok || dep.Path != "../helper.jar" {
		t.Errorf("helper dep = %v, want path ../helper.jar", m.Dependencies["helper"])
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	tomlContent := `
[project]
name = "minimal"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Build.Classes != filepath.Join("target", "classes") {
		t.Errorf("default classes = %q, want target/classes", m.Build.Classes)
	}
	if m.Build.Jobs != runtime.GOMAXPROCS(0) {
		t.Errorf("default jobs = %d, want %d", m.Build.Jobs, runtime.GOMAXPROCS(0))
	}
	if m.StatePath() != filepath.Join(m.Dir, ".bridge", "state.cbor") {
		t.Errorf("state path = %q", m.StatePath())
	}
}

func TestLoadManifestError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[build\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("Load succeeded on malformed toml")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[project]
name = "found-project"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no bridge.toml exists")
	}
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		words   []string
		flags   Flags
		mode    Mode
		unknown int
	}{
		{nil, 0, Lazy, 0},
		{[]string{"no-debug"}, NoDebug, Lazy, 0},
		{[]string{"No Line Numbers", "NO_SOURCE"}, NoLineNumbers | NoSourceExt | NoSourceNames, Lazy, 0},
		{[]string{"no-named-parameters", "no_module_version"}, NoNamedParams | NoModuleVersions, Lazy, 0},
		{[]string{"source-extensions", "force-recompile"}, 0, Force, 1},
		{[]string{"no-named-locals", "skip compile", "no-debug"}, NoNamedLocals, Skip, 0},
	}
	for _, tt := range tests {
		flags, mode, unknown := ParseFlags(tt.words)
		if flags != tt.flags || mode != tt.mode || len(unknown) != tt.unknown {
			t.Errorf("ParseFlags(%q) = %#x, %d, %v, want %#x, %d, %d unknown",
				tt.words, flags, mode, unknown, tt.flags, tt.mode, tt.unknown)
		}
	}
}

func TestFlagsHas(t *testing.T) {
	if !NoDebug.Has(NoSourceExt | NoNamedLocals) {
		t.Error("NoDebug does not include NoSourceExt|NoNamedLocals")
	}
	if NoSourceNames.Has(NoSourceExt) {
		t.Error("NoSourceNames includes NoSourceExt")
	}
}
