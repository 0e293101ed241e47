package bytecode

import "strings"

// Sink receives a stream of instructions. Body is the terminal sink; the
// rewriter chains its machines through this interface.
type Sink interface {
	Emit(in Insn)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Insn)

func (f SinkFunc) Emit(in Insn) { f(in) }

// Handler is an exception table entry. Type is the internal name of the
// caught class, or empty for a catch-all.
type Handler struct {
	Start, End, Target *Label
	Type               string
}

// Local is a LocalVariableTable entry, or a LocalVariableTypeTable entry
// when Desc holds a signature.
type Local struct {
	Start, End *Label
	Name, Desc string
	Index      int
}

// Body is the symbolic form of a Code attribute.
type Body struct {
	Insns      []Insn
	Handlers   []Handler
	Locals     []Local
	LocalTypes []Local
}

func (b *Body) Emit(in Insn) {
	b.Insns = append(b.Insns, in)
}

// Labels maps every placed label to its index in Insns.
func (b *Body) Labels() map[*Label]int {
	m := make(map[*Label]int)
	for i, in := range b.Insns {
		if in.Op == OpLabel {
			m[in.Label] = i
		}
	}
	return m
}

// Replay feeds every instruction of the body to s.
func (b *Body) Replay(s Sink) {
	for _, in := range b.Insns {
		s.Emit(in)
	}
}

func (b *Body) String() string {
	var sb strings.Builder
	for _, in := range b.Insns {
		if in.Op != OpLabel {
			sb.WriteString("    ")
		}
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
