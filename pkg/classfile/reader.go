package classfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var errTruncated = errors.New("unexpected end of data")

// reader is a big-endian cursor. The first failure sticks and every later
// read returns zero.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("%w at offset %d", errTruncated, r.pos)
		return false
	}
	return true
}

func (r *reader) u1() byte {
	if !r.need(1) {
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if n < 0 || !r.need(n) {
		return nil
	}
	b := r.data[r.pos : r.pos+n : r.pos+n]
	r.pos += n
	return b
}

// Parse decodes a class file.
func Parse(data []byte) (*Class, error) {
	r := &reader{data: data}
	if magic := r.u4(); r.err == nil && magic != Magic {
		return nil, fmt.Errorf("classfile: invalid magic 0x%08X", magic)
	}
	c := &Class{}
	c.Minor = r.u2()
	c.Major = r.u2()
	pool, err := readPool(r)
	if err != nil {
		return nil, err
	}
	c.Pool = pool

	if err := readHeader(r, pool, c); err != nil {
		return nil, err
	}

	for _, list := range []*[]*Member{&c.Fields, &c.Methods} {
		n := int(r.u2())
		for i := 0; i < n && r.err == nil; i++ {
			m, err := readMember(r, pool)
			if err != nil {
				return nil, err
			}
			*list = append(*list, m)
		}
	}

	attrs, err := readAttributes(r, pool)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Name {
		case AttrSourceFile:
			c.SourceFile, err = utf8At(a.Data, pool)
		case AttrSignature:
			c.Signature, err = utf8At(a.Data, pool)
		case AttrRuntimeVisibleAnnotations:
			c.Visible, err = parseAnnotations(a.Data, pool)
		case AttrRuntimeInvisibleAnnotations:
			c.Invisible, err = parseAnnotations(a.Data, pool)
		default:
			c.Attrs = append(c.Attrs, a)
		}
		if err != nil {
			return nil, fmt.Errorf("classfile: class attribute %s: %w", a.Name, err)
		}
	}
	if r.err != nil {
		return nil, fmt.Errorf("classfile: %w", r.err)
	}
	return c, nil
}

// Header is the hierarchy-relevant part of a class file.
type Header struct {
	Major      uint16
	Access     uint16
	Name       string
	Super      string
	Interfaces []string
}

// ParseHeader decodes only the constant pool and the class header, which is
// all a hierarchy lookup needs.
func ParseHeader(data []byte) (*Header, error) {
	r := &reader{data: data}
	if magic := r.u4(); r.err == nil && magic != Magic {
		return nil, fmt.Errorf("classfile: invalid magic 0x%08X", magic)
	}
	r.u2()
	major := r.u2()
	pool, err := readPool(r)
	if err != nil {
		return nil, err
	}
	c := &Class{}
	if err := readHeader(r, pool, c); err != nil {
		return nil, err
	}
	return &Header{
		Major:      major,
		Access:     c.Access,
		Name:       c.Name,
		Super:      c.Super,
		Interfaces: c.Interfaces,
	}, nil
}

func readPool(r *reader) (*Pool, error) {
	count := int(r.u2())
	p := NewPool()
	for len(p.entries) < count && r.err == nil {
		i := len(p.entries)
		c := Constant{Tag: r.u1()}
		switch c.Tag {
		case TagUtf8:
			n := int(r.u2())
			c.Str = decodeMUTF8(r.bytes(n))
		case TagInteger, TagFloat:
			c.Bits = uint64(r.u4())
		case TagLong, TagDouble:
			c.Bits = uint64(r.u4())<<32 | uint64(r.u4())
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.Ref = r.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			c.Ref = r.u2()
			c.Ref2 = r.u2()
		case TagMethodHandle:
			c.Kind = r.u1()
			c.Ref = r.u2()
		default:
			if r.err == nil {
				return nil, fmt.Errorf("classfile: unknown constant tag %d at index %d", c.Tag, i)
			}
		}
		p.push(c)
	}
	if r.err != nil {
		return nil, fmt.Errorf("classfile: constant pool: %w", r.err)
	}
	if len(p.entries) != count {
		return nil, fmt.Errorf("classfile: constant pool: wide entry overruns count %d", count)
	}
	return p, nil
}

func readHeader(r *reader, p *Pool, c *Class) error {
	c.Access = r.u2()
	this := r.u2()
	super := r.u2()
	n := int(r.u2())
	ifaces := make([]uint16, 0, n)
	for i := 0; i < n; i++ {
		ifaces = append(ifaces, r.u2())
	}
	if r.err != nil {
		return fmt.Errorf("classfile: header: %w", r.err)
	}

	var err error
	if c.Name, err = p.Class(this); err != nil {
		return err
	}
	if super != 0 {
		if c.Super, err = p.Class(super); err != nil {
			return err
		}
	}
	for _, i := range ifaces {
		name, err := p.Class(i)
		if err != nil {
			return err
		}
		c.Interfaces = append(c.Interfaces, name)
	}
	return nil
}

func readMember(r *reader, p *Pool) (*Member, error) {
	m := &Member{Access: r.u2()}
	var err error
	if m.Name, err = p.Utf8(r.u2()); err != nil {
		return nil, err
	}
	if m.Desc, err = p.Utf8(r.u2()); err != nil {
		return nil, err
	}
	attrs, err := readAttributes(r, p)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Name {
		case AttrSignature:
			m.Signature, err = utf8At(a.Data, p)
		case AttrConstantValue:
			if len(a.Data) != 2 {
				err = errors.New("bad length")
			} else {
				m.ConstantValue = binary.BigEndian.Uint16(a.Data)
			}
		case AttrExceptions:
			m.Exceptions, err = readClassList(a.Data, p)
		case AttrRuntimeVisibleAnnotations:
			m.Visible, err = parseAnnotations(a.Data, p)
		case AttrRuntimeInvisibleAnnotations:
			m.Invisible, err = parseAnnotations(a.Data, p)
		case AttrCode:
			m.Code, err = readCode(a.Data, p)
		default:
			m.Attrs = append(m.Attrs, a)
		}
		if err != nil {
			return nil, fmt.Errorf("classfile: %s%s attribute %s: %w", m.Name, m.Desc, a.Name, err)
		}
	}
	return m, nil
}

func readAttributes(r *reader, p *Pool) ([]Attribute, error) {
	n := int(r.u2())
	attrs := make([]Attribute, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		name, err := p.Utf8(r.u2())
		if err != nil {
			return nil, err
		}
		size := r.u4()
		if size > math.MaxInt32 {
			return nil, fmt.Errorf("classfile: attribute %s too large", name)
		}
		attrs = append(attrs, Attribute{Name: name, Data: r.bytes(int(size))})
	}
	if r.err != nil {
		return nil, fmt.Errorf("classfile: attributes: %w", r.err)
	}
	return attrs, nil
}

func readCode(data []byte, p *Pool) (*Code, error) {
	r := &reader{data: data}
	c := &Code{
		MaxStack:  r.u2(),
		MaxLocals: r.u2(),
	}
	c.Code = r.bytes(int(r.u4()))
	n := int(r.u2())
	for i := 0; i < n && r.err == nil; i++ {
		c.Handlers = append(c.Handlers, Handler{
			Start:  r.u2(),
			End:    r.u2(),
			Target: r.u2(),
			Type:   r.u2(),
		})
	}
	attrs, err := readAttributes(r, p)
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		switch a.Name {
		case AttrLineNumberTable:
			ar := &reader{data: a.Data}
			n := int(ar.u2())
			for i := 0; i < n && ar.err == nil; i++ {
				c.Lines = append(c.Lines, LineNumber{PC: ar.u2(), Line: ar.u2()})
			}
			err = ar.err
		case AttrLocalVariableTable:
			var lv []LocalVariable
			lv, err = readLocals(a.Data, p)
			c.Locals = append(c.Locals, lv...)
		case AttrLocalVariableTypeTable:
			var lv []LocalVariable
			lv, err = readLocals(a.Data, p)
			c.LocalTypes = append(c.LocalTypes, lv...)
		case AttrStackMapTable, AttrRuntimeVisibleTypeAnnos, AttrRuntimeInvisibleTypeAnnos:
			// offsets into the old code array
		default:
			c.Attrs = append(c.Attrs, a)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}
	}
	return c, r.err
}

func readLocals(data []byte, p *Pool) ([]LocalVariable, error) {
	r := &reader{data: data}
	n := int(r.u2())
	out := make([]LocalVariable, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		lv := LocalVariable{PC: r.u2(), Length: r.u2()}
		var err error
		if lv.Name, err = p.Utf8(r.u2()); err != nil {
			return nil, err
		}
		if lv.Desc, err = p.Utf8(r.u2()); err != nil {
			return nil, err
		}
		lv.Index = r.u2()
		out = append(out, lv)
	}
	return out, r.err
}

func readClassList(data []byte, p *Pool) ([]string, error) {
	r := &reader{data: data}
	n := int(r.u2())
	out := make([]string, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		name, err := p.Class(r.u2())
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, r.err
}

func utf8At(data []byte, p *Pool) (string, error) {
	if len(data) != 2 {
		return "", fmt.Errorf("bad length %d", len(data))
	}
	return p.Utf8(binary.BigEndian.Uint16(data))
}
