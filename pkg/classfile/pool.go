package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags.
const (
	TagUtf8               byte = 1
	TagInteger            byte = 3
	TagFloat              byte = 4
	TagLong               byte = 5
	TagDouble             byte = 6
	TagClass              byte = 7
	TagString             byte = 8
	TagFieldref           byte = 9
	TagMethodref          byte = 10
	TagInterfaceMethodref byte = 11
	TagNameAndType        byte = 12
	TagMethodHandle       byte = 15
	TagMethodType         byte = 16
	TagDynamic            byte = 17
	TagInvokeDynamic      byte = 18
	TagModule             byte = 19
	TagPackage            byte = 20
)

// Constant is a single constant pool entry. The zero Constant fills the
// unusable slot that follows a long or double.
type Constant struct {
	Tag  byte
	Str  string // Utf8
	Bits uint64 // Integer, Float, Long, Double (raw bits)
	Ref  uint16 // first referenced index
	Ref2 uint16 // second referenced index
	Kind byte   // MethodHandle reference kind
}

// Wide reports whether the constant occupies two pool slots.
func (c Constant) Wide() bool {
	return c.Tag == TagLong || c.Tag == TagDouble
}

// Pool is a class constant pool. Entries are only ever appended, so indexes
// handed out stay valid for the life of the pool and of every clone.
type Pool struct {
	entries []Constant
	index   map[Constant]uint16
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{
		entries: make([]Constant, 1),
		index:   make(map[Constant]uint16),
	}
}

// Count returns the constant_pool_count value: one more than the highest index.
func (p *Pool) Count() int {
	return len(p.entries)
}

// At returns the entry at index i, or the zero Constant when i is out of range.
func (p *Pool) At(i uint16) Constant {
	if int(i) >= len(p.entries) {
		return Constant{}
	}
	return p.entries[i]
}

// Clone returns an independent copy of the pool.
func (p *Pool) Clone() *Pool {
	c := &Pool{
		entries: make([]Constant, len(p.entries)),
		index:   make(map[Constant]uint16, len(p.index)),
	}
	copy(c.entries, p.entries)
	for k, v := range p.index {
		c.index[k] = v
	}
	return c
}

// Add returns the index of c, appending it if no equal entry exists.
func (p *Pool) Add(c Constant) uint16 {
	if i, ok := p.index[c]; ok {
		return i
	}
	i := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if c.Wide() {
		p.entries = append(p.entries, Constant{})
	}
	p.index[c] = i
	return i
}

// push appends c without dedup lookup. It is used while parsing so that
// indexes match the input exactly.
func (p *Pool) push(c Constant) {
	i := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	if _, ok := p.index[c]; !ok {
		p.index[c] = i
	}
	if c.Wide() {
		p.entries = append(p.entries, Constant{})
	}
}

func (p *Pool) AddUtf8(s string) uint16 {
	return p.Add(Constant{Tag: TagUtf8, Str: s})
}

func (p *Pool) AddClass(name string) uint16 {
	return p.Add(Constant{Tag: TagClass, Ref: p.AddUtf8(name)})
}

func (p *Pool) AddString(s string) uint16 {
	return p.Add(Constant{Tag: TagString, Ref: p.AddUtf8(s)})
}

func (p *Pool) AddInteger(v int32) uint16 {
	return p.Add(Constant{Tag: TagInteger, Bits: uint64(uint32(v))})
}

func (p *Pool) AddFloat(v float32) uint16 {
	return p.Add(Constant{Tag: TagFloat, Bits: uint64(math.Float32bits(v))})
}

func (p *Pool) AddLong(v int64) uint16 {
	return p.Add(Constant{Tag: TagLong, Bits: uint64(v)})
}

func (p *Pool) AddDouble(v float64) uint16 {
	return p.Add(Constant{Tag: TagDouble, Bits: math.Float64bits(v)})
}

func (p *Pool) AddNameAndType(name, desc string) uint16 {
	return p.Add(Constant{Tag: TagNameAndType, Ref: p.AddUtf8(name), Ref2: p.AddUtf8(desc)})
}

func (p *Pool) AddFieldref(owner, name, desc string) uint16 {
	return p.Add(Constant{Tag: TagFieldref, Ref: p.AddClass(owner), Ref2: p.AddNameAndType(name, desc)})
}

// AddMethodref adds a Methodref, or an InterfaceMethodref when itf is set.
func (p *Pool) AddMethodref(owner, name, desc string, itf bool) uint16 {
	tag := TagMethodref
	if itf {
		tag = TagInterfaceMethodref
	}
	return p.Add(Constant{Tag: tag, Ref: p.AddClass(owner), Ref2: p.AddNameAndType(name, desc)})
}

// Err reports whether the pool has grown past the class-file limit.
func (p *Pool) Err() error {
	if len(p.entries) > math.MaxUint16 {
		return fmt.Errorf("classfile: constant pool overflow (%d entries)", len(p.entries))
	}
	return nil
}

// Utf8 returns the string of the Utf8 entry at i.
func (p *Pool) Utf8(i uint16) (string, error) {
	c := p.At(i)
	if c.Tag != TagUtf8 {
		return "", fmt.Errorf("classfile: constant %d is not Utf8 (tag %d)", i, c.Tag)
	}
	return c.Str, nil
}

// Class returns the internal name of the Class entry at i.
func (p *Pool) Class(i uint16) (string, error) {
	c := p.At(i)
	if c.Tag != TagClass {
		return "", fmt.Errorf("classfile: constant %d is not a class (tag %d)", i, c.Tag)
	}
	return p.Utf8(c.Ref)
}

// NameAndType returns the name and descriptor of the NameAndType entry at i.
func (p *Pool) NameAndType(i uint16) (name, desc string, err error) {
	c := p.At(i)
	if c.Tag != TagNameAndType {
		return "", "", fmt.Errorf("classfile: constant %d is not a name and type (tag %d)", i, c.Tag)
	}
	if name, err = p.Utf8(c.Ref); err != nil {
		return "", "", err
	}
	desc, err = p.Utf8(c.Ref2)
	return name, desc, err
}

// Member returns owner, name and descriptor of a field or method reference.
func (p *Pool) Member(i uint16) (owner, name, desc string, err error) {
	c := p.At(i)
	switch c.Tag {
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
	default:
		return "", "", "", fmt.Errorf("classfile: constant %d is not a member reference (tag %d)", i, c.Tag)
	}
	if owner, err = p.Class(c.Ref); err != nil {
		return "", "", "", err
	}
	name, desc, err = p.NameAndType(c.Ref2)
	return owner, name, desc, err
}

// Value returns the Go value of a loadable numeric or string entry:
// int32, float32, int64, float64 or string.
func (p *Pool) Value(i uint16) (any, error) {
	c := p.At(i)
	switch c.Tag {
	case TagInteger:
		return int32(uint32(c.Bits)), nil
	case TagFloat:
		return math.Float32frombits(uint32(c.Bits)), nil
	case TagLong:
		return int64(c.Bits), nil
	case TagDouble:
		return math.Float64frombits(c.Bits), nil
	case TagString:
		return p.Utf8(c.Ref)
	}
	return nil, fmt.Errorf("classfile: constant %d has no plain value (tag %d)", i, c.Tag)
}
