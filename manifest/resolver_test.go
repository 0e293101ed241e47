package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		in      string
		want    Coordinate
		wantErr bool
	}{
		{in: "net.ME1312.ASM:bridge:3.1", want: Coordinate{Group: "net.ME1312.ASM", Artifact: "bridge", Version: "3.1", Type: "jar"}},
		{in: "a:b : 1.0:jmod", want: Coordinate{Group: "a", Artifact: "b", Version: "1.0", Type: "jmod"}},
		{in: "a:b:1.0:jar:tests", want: Coordinate{Group: "a", Artifact: "b", Version: "1.0", Type: "jar", Classifier: "tests"}},
		{in: "a:b", wantErr: true},
		{in: "a:b:c:d:e:f", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseCoordinate(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCoordinate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseCoordinate(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestCoordinatePath(t *testing.T) {
	c := Coordinate{Group: "com.example", Artifact: "lib", Version: "2.0", Type: "jar", Classifier: "api"}
	want := filepath.Join("/repo", "com", "example", "lib", "2.0", "lib-2.0-api.jar")
	if got := c.Path("/repo"); got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	if got := c.String(); got != "com.example:lib:2.0:jar:api" {
		t.Errorf("String = %q", got)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	jar := Coordinate{Group: "com.example", Artifact: "lib", Version: "2.0", Type: "jar"}.Path(repo)
	if err := os.MkdirAll(filepath.Dir(jar), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jar, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "local.jar"), []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}

	m := &Manifest{
		Dir:       dir,
		Classpath: Classpath{Repository: "repo"},
		Dependencies: map[string]Dependency{
			"lib":   {Coordinate: "com.example:lib:2.0"},
			"local": {Path: "local.jar"},
		},
	}
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(deps) != 2 || deps[0].Name != "lib" || deps[0].LocalPath != jar {
		t.Fatalf("deps = %+v", deps)
	}
	if deps[1].LocalPath != filepath.Join(dir, "local.jar") {
		t.Errorf("local path = %q", deps[1].LocalPath)
	}

	m.Dependencies["missing"] = Dependency{Path: "nope.jar"}
	if _, err := NewResolver(m).Resolve(); err == nil {
		t.Error("Resolve succeeded with a missing dependency")
	}
}
