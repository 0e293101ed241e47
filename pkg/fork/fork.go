// Package fork emits the per-version copies of a rewritten class.
//
// A class whose methods compare Invocation.LANGUAGE_LEVEL against constants
// is written once per language level the comparisons distinguish. Each copy
// has every comparison decided for its level, is cleaned of the code that
// became unreachable, and is reassembled against its own constant pool.
package fork

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strconv"

	"github.com/chazu/bridge/manifest"
	"github.com/chazu/bridge/pkg/bytecode"
	"github.com/chazu/bridge/pkg/classfile"
	"github.com/chazu/bridge/pkg/cleanup"
	"github.com/chazu/bridge/pkg/rewrite"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("bridge.fork")

// VersionsDir is the multi-release root inside a classes directory.
const VersionsDir = "META-INF/versions"

// Target is one language level a class is emitted for.
type Target struct {
	Version      int
	MultiRelease bool // written below META-INF/versions
}

// Path returns where the class named internal is written, relative to the
// classes directory.
func (t Target) Path(internal string) string {
	if t.MultiRelease {
		return path.Join(VersionsDir, strconv.Itoa(t.Version), internal+".class")
	}
	return internal + ".class"
}

// Targets lists the emissions of a rewritten class, base version first.
func Targets(rc *rewrite.Class) []Target {
	var ts []Target
	for _, v := range rc.Versions() {
		ts = append(ts, Target{Version: v, MultiRelease: rc.MultiRelease(v)})
	}
	return ts
}

// RecompileError reports a method that could not be reassembled for a
// target.
type RecompileError struct {
	rewrite.Position
	Target int
	Err    error
}

func (e *RecompileError) Error() string {
	return "Failed recompiling method: " + e.Position.String() + " [target:" + strconv.Itoa(e.Target) + "]: " + e.Err.Error()
}

func (e *RecompileError) Unwrap() error { return e.Err }

var errIncomplete = errors.New("language level read without a comparison")

// Resolve decides every language level comparison in b for version. The
// sentinel read and its constant are dropped; the comparison becomes a GOTO
// when it holds for version and disappears otherwise.
func Resolve(b *bytecode.Body, version int) (*bytecode.Body, error) {
	out := &bytecode.Body{
		Handlers:   b.Handlers,
		Locals:     b.Locals,
		LocalTypes: b.LocalTypes,
	}
	pending := false
	v := 0
	for _, in := range b.Insns {
		if rewrite.IsLevel(in) {
			pending, v = true, 0
			continue
		}
		if !pending {
			out.Emit(in)
			continue
		}
		if n, ok := in.IntValue(); ok && isPush(in.Op) {
			v = int(n)
			continue
		}
		holds, ok := decide(in.Op, version, v)
		if !ok {
			out.Emit(in)
			continue
		}
		pending = false
		if holds {
			out.Emit(bytecode.Jump(bytecode.OpGoto, in.Target))
		}
	}
	if pending {
		return nil, errIncomplete
	}
	return out, nil
}

func isPush(op bytecode.Opcode) bool {
	return op == bytecode.OpBipush || op == bytecode.OpSipush || op == bytecode.OpLdc
}

// decide evaluates "target op v"; ok is false for anything but an integer
// comparison.
func decide(op bytecode.Opcode, target, v int) (holds, ok bool) {
	switch op {
	case bytecode.OpIfIcmpeq:
		return target == v, true
	case bytecode.OpIfIcmpne:
		return target != v, true
	case bytecode.OpIfIcmplt:
		return target < v, true
	case bytecode.OpIfIcmpge:
		return target >= v, true
	case bytecode.OpIfIcmpgt:
		return target > v, true
	case bytecode.OpIfIcmple:
		return target <= v, true
	}
	return false, false
}

// Emit encodes the fork of c for t. bodies holds the rewritten body of
// every method with code; c itself is left untouched. The fork keeps the
// class file version of c.
func Emit(c *classfile.Class, rc *rewrite.Class, bodies map[*classfile.Member]*bytecode.Body, t Target, flags manifest.Flags) ([]byte, error) {
	out := *c
	out.Pool = c.Pool.Clone()
	out.Methods = make([]*classfile.Member, len(c.Methods))
	opts := cleanup.Options{
		NoLines:  flags.Has(manifest.NoLineNumbers),
		NoLocals: flags.Has(manifest.NoNamedLocals),
	}
	for i, m := range c.Methods {
		mm := *m
		if flags.Has(manifest.NoNamedParams) {
			mm.Attrs = classfile.StripAttr(mm.Attrs, classfile.AttrMethodParameters)
		}
		if b, ok := bodies[m]; ok {
			code, err := method(&out, &mm, rc, b, t, opts)
			if err != nil {
				return nil, err
			}
			mm.Code = code
		}
		out.Methods[i] = &mm
	}

	if flags.Has(manifest.NoSourceNames) {
		out.SourceFile = ""
	}
	if flags.Has(manifest.NoSourceExt) {
		out.Attrs = classfile.StripAttr(out.Attrs, classfile.AttrSourceDebugExtension)
	}
	if flags.Has(manifest.NoModuleVersions) {
		if err := stripModule(&out); err != nil {
			return nil, err
		}
	}
	data, err := out.Bytes()
	if err != nil {
		return nil, fmt.Errorf("fork: %s [target:%d]: %w", c.Name, t.Version, err)
	}
	log.Debugf("%s: %d bytes for language level %d", c.Name, len(data), t.Version)
	return data, nil
}

func method(c *classfile.Class, m *classfile.Member, rc *rewrite.Class, b *bytecode.Body, t Target, opts cleanup.Options) (*classfile.Code, error) {
	fail := func(err error) error {
		return &RecompileError{Position: rc.Position(m.Name, firstLine(b)), Target: t.Version, Err: err}
	}
	resolved, err := Resolve(b, t.Version)
	if err != nil {
		return nil, fail(err)
	}
	code, err := bytecode.Assemble(cleanup.Run(resolved, opts), c.Pool, bytecode.Options{
		Owner:     c.Name,
		Static:    m.Access&classfile.AccStatic != 0,
		Name:      m.Name,
		Desc:      m.Desc,
		Major:     c.Major,
		Hierarchy: rc.Graph,
	})
	if err != nil {
		return nil, fail(err)
	}
	return code, nil
}

func stripModule(c *classfile.Class) error {
	i := slices.IndexFunc(c.Attrs, func(a classfile.Attribute) bool { return a.Name == classfile.AttrModule })
	if i < 0 {
		return nil
	}
	data, err := classfile.StripModuleVersions(c.Attrs[i].Data)
	if err != nil {
		return fmt.Errorf("fork: %s: %w", c.Name, err)
	}
	c.Attrs = slices.Clone(c.Attrs)
	c.Attrs[i].Data = data
	return nil
}

func firstLine(b *bytecode.Body) int {
	for _, in := range b.Insns {
		if in.Op == bytecode.OpLine {
			return in.Line
		}
	}
	return 0
}
