package types

import (
	"errors"
	"testing"
)

type mapSource map[string]*Record

func (m mapSource) Lookup(name string) (*Record, error) {
	return m[name], nil
}

func TestSort(t *testing.T) {
	tests := []struct {
		t    Type
		sort Sort
		prim Sort
		size int
	}{
		{Void, SortVoid, SortVoid, 0},
		{Boolean, SortBoolean, SortBoolean, 1},
		{Long, SortLong, SortLong, 2},
		{Double, SortDouble, SortDouble, 2},
		{"[I", SortArray, SortArray, 1},
		{String, SortObject, SortObject, 1},
		{"Ljava/lang/Integer;", SortObject, SortInt, 1},
		{"Ljava/lang/Void;", SortObject, SortVoid, 1},
	}
	for _, tt := range tests {
		if got := tt.t.Sort(); got != tt.sort {
			t.Errorf("%s.Sort() = %v, want %v", tt.t, got, tt.sort)
		}
		if got := PrimitiveSort(tt.t); got != tt.prim {
			t.Errorf("PrimitiveSort(%s) = %v, want %v", tt.t, got, tt.prim)
		}
		if got := tt.t.Size(); got != tt.size {
			t.Errorf("%s.Size() = %d, want %d", tt.t, got, tt.size)
		}
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		t         Type
		internal  string
		className string
		dims      int
	}{
		{String, "java/lang/String", "java.lang.String", 0},
		{"[[I", "[[I", "int[][]", 2},
		{"[Ljava/lang/Object;", "[Ljava/lang/Object;", "java.lang.Object[]", 1},
	}
	for _, tt := range tests {
		if got := tt.t.Internal(); got != tt.internal {
			t.Errorf("%s.Internal() = %q, want %q", tt.t, got, tt.internal)
		}
		if got := tt.t.ClassName(); got != tt.className {
			t.Errorf("%s.ClassName() = %q, want %q", tt.t, got, tt.className)
		}
		if got := tt.t.Dims(); got != tt.dims {
			t.Errorf("%s.Dims() = %d, want %d", tt.t, got, tt.dims)
		}
	}
	if got := ObjectType("java/util/List"); got != "Ljava/util/List;" {
		t.Errorf("ObjectType = %q", got)
	}
	if got := ObjectType("[J"); got != "[J" {
		t.Errorf("ObjectType([J) = %q", got)
	}
	if got := ArrayOf(Int, 2); got != "[[I" {
		t.Errorf("ArrayOf(I, 2) = %q", got)
	}
	if got := Box(Char); got != "Ljava/lang/Character;" {
		t.Errorf("Box(C) = %q", got)
	}
}

func TestParseMethod(t *testing.T) {
	params, ret, err := ParseMethod("(I[Ljava/lang/String;JLjava/util/List;)Ljava/lang/Object;")
	if err != nil {
		t.Fatalf("ParseMethod failed: %v", err)
	}
	want := []Type{Int, "[Ljava/lang/String;", Long, "Ljava/util/List;"}
	if len(params) != len(want) {
		t.Fatalf("params = %v, want %v", params, want)
	}
	for i := range want {
		if params[i] != want[i] {
			t.Errorf("params[%d] = %s, want %s", i, params[i], want[i])
		}
	}
	if ret != Object {
		t.Errorf("ret = %s, want %s", ret, Object)
	}
	if Slots(params) != 5 {
		t.Errorf("Slots = %d, want 5", Slots(params))
	}
	if got := MethodDesc(Void, params...); got != "(I[Ljava/lang/String;JLjava/util/List;)V" {
		t.Errorf("MethodDesc = %q", got)
	}

	for _, bad := range []string{"", "I", "(Q)V", "(Ljava/lang/String)V", "(I"} {
		if _, _, err := ParseMethod(bad); err == nil {
			t.Errorf("ParseMethod(%q) succeeded, want error", bad)
		}
	}
}

func TestImplements(t *testing.T) {
	g := NewGraph(mapSource{
		"demo/Base":  {Name: "demo/Base", Access: accPublic, Interfaces: []string{"demo/Shape"}},
		"demo/Shape": {Name: "demo/Shape", Access: accIface},
		"demo/Box":   {Name: "demo/Box", Access: accPublic, Super: "demo/Base"},
	})

	tests := []struct {
		a, b Type
		want bool
	}{
		{"Ldemo/Box;", "Ldemo/Base;", true},
		{"Ldemo/Box;", "Ldemo/Shape;", true},
		{"Ldemo/Box;", Object, true},
		{"Ldemo/Base;", "Ldemo/Box;", false},
		{"Ljava/lang/Integer;", Number, true},
		{"Ljava/lang/Integer;", "Ljava/lang/Comparable;", true},
		{Int, Int, true},
		{Int, Long, false},
		{"[Ldemo/Box;", "[Ldemo/Shape;", true},
		{"[Ldemo/Base;", "[Ldemo/Box;", false},
		{"[[Ldemo/Box;", "[Ljava/lang/Object;", true},
		{"[I", Object, true},
		{"[I", Cloneable, true},
		{"[I", "[J", false},
		{"[I", "[Ljava/lang/Object;", false},
	}
	for _, tt := range tests {
		if got := g.Load(tt.a).Implements(g.Load(tt.b)); got != tt.want {
			t.Errorf("%s implements %s = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestImplementsCycle(t *testing.T) {
	g := NewGraph(mapSource{
		"demo/A": {Name: "demo/A", Access: accIface, Interfaces: []string{"demo/B"}},
		"demo/B": {Name: "demo/B", Access: accIface, Interfaces: []string{"demo/A"}},
	})
	a := g.LoadClass("demo/A")
	if a.Implements(g.LoadClass("java/lang/String")) {
		t.Error("cyclic interface implements String")
	}
}

func TestResolveUnknown(t *testing.T) {
	g := NewGraph(nil)
	n, err := g.Resolve("Lmissing/Thing;")
	var unresolved *UnresolvedTypeError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Resolve error = %v, want *UnresolvedTypeError", err)
	}
	if unresolved.Name != "missing/Thing" {
		t.Errorf("Name = %q, want missing/Thing", unresolved.Name)
	}
	if !n.IsStub() || n.Super == nil || n.Super.Type != Object || len(n.Interfaces) != 0 {
		t.Errorf("stub = %+v", n)
	}
	if again := g.Load("Lmissing/Thing;"); again != n {
		t.Error("stub not cached")
	}
}

func TestDefineCompletesStub(t *testing.T) {
	g := NewGraph(nil)
	stub := g.LoadClass("demo/Late")
	n := g.Define(Record{Name: "demo/Late", Access: accPublic, Super: "java/lang/Number", Data: "scan"})
	if n != stub {
		t.Fatal("Define replaced the stub instead of completing it")
	}
	if n.IsStub() || n.Super.Type != Number || n.Data != "scan" {
		t.Errorf("node = %+v", n)
	}

	// Defining again keeps the first definition.
	g.Define(Record{Name: "demo/Late", Super: "java/lang/String"})
	if n.Super.Type != Number {
		t.Error("second Define overwrote the node")
	}
}

func TestCommonSuper(t *testing.T) {
	g := NewGraph(mapSource{
		"demo/Base":  {Name: "demo/Base", Access: accPublic},
		"demo/Left":  {Name: "demo/Left", Access: accPublic, Super: "demo/Base"},
		"demo/Right": {Name: "demo/Right", Access: accPublic, Super: "demo/Base"},
	})
	tests := []struct {
		a, b, want string
	}{
		{"demo/Left", "demo/Right", "demo/Base"},
		{"demo/Left", "demo/Base", "demo/Base"},
		{"java/lang/Integer", "java/lang/Long", "java/lang/Number"},
		{"java/lang/String", "java/lang/Integer", "java/lang/Object"},
		{"java/lang/Comparable", "java/lang/String", "java/lang/Comparable"},
		{"java/lang/Runnable", "demo/Left", "java/lang/Object"},
		{"[Ldemo/Left;", "[Ldemo/Right;", "[Ldemo/Base;"},
		{"[I", "[J", "java/lang/Object"},
	}
	for _, tt := range tests {
		if got := g.CommonSuper(tt.a, tt.b); got != tt.want {
			t.Errorf("CommonSuper(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}
