package classpath

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/types"
	"github.com/klauspost/compress/zip"
)

func classBytes(t *testing.T, name, super string, ifaces ...string) []byte {
	t.Helper()
	c := &classfile.Class{
		Major:      52,
		Access:     classfile.AccPublic | classfile.AccSuper,
		Name:       name,
		Super:      super,
		Interfaces: ifaces,
	}
	data, err := c.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	return data
}

func writeJar(t *testing.T, file string, header []byte, entries map[string][]byte) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(header)
	zw := zip.NewWriter(&buf)
	for name, data := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write(data)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLookupDirectory(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "com", "example"), 0o755)
	os.WriteFile(filepath.Join(dir, "com", "example", "Foo.class"),
		classBytes(t, "com/example/Foo", "com/example/Base", "java/lang/Runnable"), 0o644)

	p, err := Open(context.Background(), []string{dir}, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	r, err := p.Lookup("com/example/Foo")
	if err != nil || r == nil {
		t.Fatalf("Lookup = %v, %v", r, err)
	}
	if r.Super != "com/example/Base" {
		t.Errorf("Super = %q, want %q", r.Super, "com/example/Base")
	}
	if len(r.Interfaces) != 1 || r.Interfaces[0] != "java/lang/Runnable" {
		t.Errorf("Interfaces = %v, want [java/lang/Runnable]", r.Interfaces)
	}
	if r, err := p.Lookup("com/example/Missing"); r != nil || err != nil {
		t.Errorf("Lookup(missing) = %v, %v, want nil, nil", r, err)
	}
}

func TestLookupJarAndJmod(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "lib.jar")
	writeJar(t, jar, nil, map[string][]byte{
		"a/A.class":                         classBytes(t, "a/A", "java/lang/Object"),
		"META-INF/versions/11/a/A.class":    classBytes(t, "a/A", "a/Other"),
		"META-INF/maven/a/a/pom.properties": []byte("version=1.2\n"),
	})
	jmod := filepath.Join(dir, "java.base.jmod")
	writeJar(t, jmod, jmodMagic, map[string][]byte{
		"classes/b/B.class":         classBytes(t, "b/B", "a/A"),
		"classes/module-info.class": classBytes(t, "module-info", ""),
	})

	p, err := Open(context.Background(), []string{jar, jmod}, Options{Jobs: 2})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	tests := []struct {
		name, super string
	}{
		{"a/A", "java/lang/Object"},
		{"b/B", "a/A"},
	}
	for _, tt := range tests {
		r, err := p.Lookup(tt.name)
		if err != nil || r == nil {
			t.Fatalf("Lookup(%s) = %v, %v", tt.name, r, err)
		}
		if r.Super != tt.super {
			t.Errorf("Lookup(%s).Super = %q, want %q", tt.name, r.Super, tt.super)
		}
	}
	if r, _ := p.Lookup("module-info"); r != nil {
		t.Errorf("module-info was indexed as a class")
	}

	names := p.Glob("META-INF/maven/*/*/pom.properties")
	if len(names) != 1 {
		t.Fatalf("Glob = %v, want one pom.properties", names)
	}
	data, err := p.Resource(names[0])
	if err != nil || string(data) != "version=1.2\n" {
		t.Errorf("Resource = %q, %v", data, err)
	}
}

func TestGraphSource(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "lib.jar")
	writeJar(t, jar, nil, map[string][]byte{
		"x/Base.class":  classBytes(t, "x/Base", "java/lang/Object", "java/lang/Runnable"),
		"x/Child.class": classBytes(t, "x/Child", "x/Base"),
	})
	p, err := Open(context.Background(), []string{jar}, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()

	g := types.NewGraph(p)
	child := g.LoadClass("x/Child")
	if child.IsStub() {
		t.Fatal("x/Child resolved to a stub")
	}
	if !child.Implements(g.LoadClass("java/lang/Runnable")) {
		t.Error("x/Child does not implement Runnable through x/Base")
	}
}

func TestCache(t *testing.T) {
	dir := t.TempDir()
	jar := filepath.Join(dir, "lib.jar")
	writeJar(t, jar, nil, map[string][]byte{
		"c/C.class": classBytes(t, "c/C", "java/lang/Object", "java/io/Serializable", "java/lang/Cloneable"),
	})
	cache, err := OpenCache(filepath.Join(dir, "state", "classpath.db"))
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer cache.Close()

	p, err := Open(context.Background(), []string{jar}, Options{Cache: cache})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	p.Close()

	info, _ := os.Stat(jar)
	abs, _ := filepath.Abs(jar)
	recs, ok, err := cache.Load(abs, info.Size(), info.ModTime().UnixNano())
	if err != nil || !ok {
		t.Fatalf("cache.Load = %v, %v", ok, err)
	}
	if len(recs) != 1 || recs[0].Name != "c/C" || len(recs[0].Interfaces) != 2 {
		t.Errorf("cached records = %+v", recs)
	}

	if _, ok, _ := cache.Load(abs, info.Size()+1, info.ModTime().UnixNano()); ok {
		t.Error("cache hit for a changed archive")
	}

	// A second open is served from the cache.
	p, err = Open(context.Background(), []string{jar}, Options{Cache: cache})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer p.Close()
	if r, _ := p.Lookup("c/C"); r == nil || r.Interfaces[1] != "java/lang/Cloneable" {
		t.Errorf("Lookup(c/C) = %+v", r)
	}
}

func TestJDK(t *testing.T) {
	home := t.TempDir()
	os.MkdirAll(filepath.Join(home, "jmods"), 0o755)
	for _, m := range []string{"java.sql.jmod", "java.base.jmod"} {
		os.WriteFile(filepath.Join(home, "jmods", m), nil, 0o644)
	}
	got, err := JDK(home)
	if err != nil {
		t.Fatalf("JDK failed: %v", err)
	}
	if len(got) != 2 || filepath.Base(got[0]) != "java.base.jmod" {
		t.Errorf("JDK = %v", got)
	}
	if _, err := JDK(t.TempDir()); err == nil {
		t.Error("JDK on an empty directory succeeded")
	}
}
