package fork

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/chazu/bridge/manifest"
	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/rewrite"
	"github.com/chazu/bridge/pkg/scan"
	"github.com/chazu/bridge/pkg/types"
)

func level() bytecode.Insn {
	return bytecode.Field(bytecode.OpGetstatic, rewrite.InvocationClass, rewrite.LanguageLevel, "I")
}

// atLeast is the body javac emits for "if (LANGUAGE_LEVEL >= v) x = n;".
func atLeast(v, n int32) []bytecode.Insn {
	skip := bytecode.NewLabel()
	return []bytecode.Insn{
		level(),
		bytecode.Push(v),
		bytecode.Jump(bytecode.OpIfIcmplt, skip),
		bytecode.Push(n),
		bytecode.Var(bytecode.OpIstore, 0),
		bytecode.Mark(skip),
	}
}

func leveled() *bytecode.Body {
	insns := slices.Concat(
		[]bytecode.Insn{bytecode.Line(10)},
		atLeast(9, 1),
		atLeast(11, 2),
		atLeast(17, 3),
		[]bytecode.Insn{bytecode.Op(bytecode.OpReturn)},
	)
	return &bytecode.Body{Insns: insns}
}

// encode assembles a single static method class.
func encode(t *testing.T, major uint16, name, desc string, body *bytecode.Body) []byte {
	t.Helper()
	c := &classfile.Class{
		Major:      major,
		Pool:       classfile.NewPool(),
		Access:     classfile.AccPublic | classfile.AccSuper,
		Name:       "a/Forked",
		Super:      "java/lang/Object",
		SourceFile: "Forked.java",
	}
	code, err := bytecode.Assemble(body, c.Pool, bytecode.Options{
		Owner: c.Name, Static: true, Name: name, Desc: desc, Major: major, Hierarchy: types.NewGraph(nil),
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	c.Methods = []*classfile.Member{{Access: classfile.AccPublic | classfile.AccStatic, Name: name, Desc: desc, Code: code}}
	data, err := c.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	return data
}

// process runs the rewrite and emits every fork of data.
func process(t *testing.T, data []byte, flags manifest.Flags) ([]Target, [][]byte) {
	t.Helper()
	c, err := classfile.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	g := types.NewGraph(nil)
	scan.Define(g, c)
	rc := rewrite.NewClass(g, c)
	bodies, err := rewrite.Decode(c)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := rc.Methods(c, bodies); err != nil {
		t.Fatalf("Methods: %v", err)
	}
	ts := Targets(rc)
	var out [][]byte
	for _, tg := range ts {
		b, err := Emit(c, rc, bodies, tg, flags)
		if err != nil {
			t.Fatalf("Emit(%d): %v", tg.Version, err)
		}
		out = append(out, b)
	}
	return ts, out
}

func count(b *bytecode.Body, op bytecode.Opcode) int {
	n := 0
	for _, in := range b.Insns {
		if in.Op == op {
			n++
		}
	}
	return n
}

func TestResolve(t *testing.T) {
	tests := []struct {
		version int
		gotos   int
	}{
		{9, 2},
		{11, 1},
		{17, 0},
	}
	for _, tt := range tests {
		out, err := Resolve(leveled(), tt.version)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", tt.version, err)
		}
		if n := count(out, bytecode.OpGoto); n != tt.gotos {
			t.Errorf("Resolve(%d) has %d GOTOs, want %d", tt.version, n, tt.gotos)
		}
		if n := count(out, bytecode.OpGetstatic) + count(out, bytecode.OpIfIcmplt) + count(out, bytecode.OpBipush); n != 0 {
			t.Errorf("Resolve(%d) left %d comparison instructions", tt.version, n)
		}
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		op     bytecode.Opcode
		target int
		v      int
		holds  bool
	}{
		{bytecode.OpIfIcmpeq, 11, 11, true},
		{bytecode.OpIfIcmpeq, 11, 9, false},
		{bytecode.OpIfIcmpne, 11, 9, true},
		{bytecode.OpIfIcmpgt, 11, 9, true},
		{bytecode.OpIfIcmpgt, 11, 17, false},
		{bytecode.OpIfIcmple, 11, 11, true},
		{bytecode.OpIfIcmplt, 9, 11, true},
		{bytecode.OpIfIcmpge, 17, 11, true},
	}
	for _, tt := range tests {
		holds, ok := decide(tt.op, tt.target, tt.v)
		if !ok || holds != tt.holds {
			t.Errorf("decide(%v, %d, %d) = %v, %v, want %v", tt.op, tt.target, tt.v, holds, ok, tt.holds)
		}
	}
	if _, ok := decide(bytecode.OpGoto, 9, 9); ok {
		t.Error("decide accepted GOTO")
	}
}

func TestResolveIncomplete(t *testing.T) {
	body := &bytecode.Body{Insns: []bytecode.Insn{level(), bytecode.Var(bytecode.OpIstore, 0), bytecode.Op(bytecode.OpReturn)}}
	if _, err := Resolve(body, 9); !errors.Is(err, errIncomplete) {
		t.Errorf("Resolve error = %v, want %v", err, errIncomplete)
	}
}

func TestForks(t *testing.T) {
	data := encode(t, classfile.Major(9), "pick", "(I)V", leveled())
	ts, out := process(t, data, 0)

	want := []Target{{9, false}, {11, true}, {17, true}}
	if !slices.Equal(ts, want) {
		t.Fatalf("Targets = %v, want %v", ts, want)
	}
	for i, b := range out {
		c, err := classfile.Parse(b)
		if err != nil {
			t.Fatalf("fork %d: Parse: %v", ts[i].Version, err)
		}
		if c.Major != classfile.Major(9) {
			t.Errorf("fork %d major = %d, want %d", ts[i].Version, c.Major, classfile.Major(9))
		}
		m := c.Method("pick", "(I)V")
		body, err := bytecode.Decode(m.Code, c.Pool)
		if err != nil {
			t.Fatalf("fork %d: Decode: %v", ts[i].Version, err)
		}
		if count(body, bytecode.OpGetstatic) != 0 {
			t.Errorf("fork %d still reads the language level", ts[i].Version)
		}
	}
	if got := ts[1].Path("a/Forked"); got != "META-INF/versions/11/a/Forked.class" {
		t.Errorf("Path = %q", got)
	}
	if got := ts[0].Path("a/Forked"); got != "a/Forked.class" {
		t.Errorf("Path = %q", got)
	}
}

func TestIdempotent(t *testing.T) {
	body := &bytecode.Body{Insns: []bytecode.Insn{
		bytecode.Line(3),
		bytecode.Var(bytecode.OpIload, 0),
		bytecode.Push(1),
		bytecode.Op(bytecode.OpIadd),
		bytecode.Op(bytecode.OpIreturn),
	}}
	data := encode(t, classfile.Major(8), "inc", "(I)I", body)
	_, first := process(t, data, 0)
	_, second := process(t, first[0], 0)
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("forks = %d, %d, want 1", len(first), len(second))
	}
	if !bytes.Equal(first[0], second[0]) {
		t.Error("second pass changed the class")
	}
}

func TestDebugFlags(t *testing.T) {
	body := &bytecode.Body{Insns: []bytecode.Insn{
		bytecode.Line(3),
		bytecode.Var(bytecode.OpIload, 0),
		bytecode.Op(bytecode.OpIreturn),
	}}
	data := encode(t, classfile.Major(8), "id", "(I)I", body)
	_, out := process(t, data, manifest.NoDebug)
	c, err := classfile.Parse(out[0])
	if err != nil {
		t.Fatal(err)
	}
	if c.SourceFile != "" {
		t.Errorf("SourceFile = %q, want none", c.SourceFile)
	}
	if lines := c.Method("id", "(I)I").Code.Lines; len(lines) != 0 {
		t.Errorf("lines = %v, want none", lines)
	}
}

func TestRecompileError(t *testing.T) {
	err := &RecompileError{
		Position: rewrite.Position{Class: "a/b/C", Method: "m", Source: "C.java", Line: 4},
		Target:   11,
		Err:      errIncomplete,
	}
	want := "Failed recompiling method: at a.b.C.m(C.java:4) [target:11]"
	if !strings.HasPrefix(err.Error(), want) {
		t.Errorf("Error() = %q, want prefix %q", err.Error(), want)
	}
	if !errors.Is(err, errIncomplete) {
		t.Error("RecompileError does not unwrap")
	}
}
