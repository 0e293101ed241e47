package classfile

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Bytes encodes the class. Attribute names and any new constants are added to
// c.Pool, so the pool is written last.
func (c *Class) Bytes() ([]byte, error) {
	p := c.Pool
	if p == nil {
		p = NewPool()
		c.Pool = p
	}

	var body []byte
	body = binary.BigEndian.AppendUint16(body, c.Access)
	body = binary.BigEndian.AppendUint16(body, p.AddClass(c.Name))
	if c.Super == "" {
		body = binary.BigEndian.AppendUint16(body, 0)
	} else {
		body = binary.BigEndian.AppendUint16(body, p.AddClass(c.Super))
	}
	body = binary.BigEndian.AppendUint16(body, uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		body = binary.BigEndian.AppendUint16(body, p.AddClass(i))
	}

	for _, list := range [][]*Member{c.Fields, c.Methods} {
		body = binary.BigEndian.AppendUint16(body, uint16(len(list)))
		for _, m := range list {
			var err error
			if body, err = m.appendTo(body, p); err != nil {
				return nil, err
			}
		}
	}

	var attrs []Attribute
	if c.SourceFile != "" {
		attrs = append(attrs, u2Attr(AttrSourceFile, p.AddUtf8(c.SourceFile)))
	}
	if c.Signature != "" {
		attrs = append(attrs, u2Attr(AttrSignature, p.AddUtf8(c.Signature)))
	}
	attrs = appendAnnotationAttrs(attrs, c.Visible, c.Invisible, p)
	attrs = append(attrs, c.Attrs...)
	var err error
	if body, err = appendAttributes(body, attrs, p); err != nil {
		return nil, err
	}

	if err := p.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+16*p.Count())
	out = binary.BigEndian.AppendUint32(out, Magic)
	out = binary.BigEndian.AppendUint16(out, c.Minor)
	out = binary.BigEndian.AppendUint16(out, c.Major)
	out = p.appendTo(out)
	return append(out, body...), nil
}

func (p *Pool) appendTo(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.entries)))
	for _, c := range p.entries[1:] {
		if c.Tag == 0 {
			continue
		}
		buf = append(buf, c.Tag)
		switch c.Tag {
		case TagUtf8:
			s := encodeMUTF8(c.Str)
			buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
			buf = append(buf, s...)
		case TagInteger, TagFloat:
			buf = binary.BigEndian.AppendUint32(buf, uint32(c.Bits))
		case TagLong, TagDouble:
			buf = binary.BigEndian.AppendUint64(buf, c.Bits)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			buf = binary.BigEndian.AppendUint16(buf, c.Ref)
		case TagMethodHandle:
			buf = append(buf, c.Kind)
			buf = binary.BigEndian.AppendUint16(buf, c.Ref)
		default:
			buf = binary.BigEndian.AppendUint16(buf, c.Ref)
			buf = binary.BigEndian.AppendUint16(buf, c.Ref2)
		}
	}
	return buf
}

func (m *Member) appendTo(buf []byte, p *Pool) ([]byte, error) {
	buf = binary.BigEndian.AppendUint16(buf, m.Access)
	buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(m.Name))
	buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(m.Desc))

	var attrs []Attribute
	if m.Code != nil {
		data, err := m.Code.bytes(p)
		if err != nil {
			return nil, fmt.Errorf("classfile: %s%s: %w", m.Name, m.Desc, err)
		}
		attrs = append(attrs, Attribute{Name: AttrCode, Data: data})
	}
	if m.ConstantValue != 0 {
		attrs = append(attrs, u2Attr(AttrConstantValue, m.ConstantValue))
	}
	if len(m.Exceptions) > 0 {
		data := binary.BigEndian.AppendUint16(nil, uint16(len(m.Exceptions)))
		for _, e := range m.Exceptions {
			data = binary.BigEndian.AppendUint16(data, p.AddClass(e))
		}
		attrs = append(attrs, Attribute{Name: AttrExceptions, Data: data})
	}
	if m.Signature != "" {
		attrs = append(attrs, u2Attr(AttrSignature, p.AddUtf8(m.Signature)))
	}
	attrs = appendAnnotationAttrs(attrs, m.Visible, m.Invisible, p)
	attrs = append(attrs, m.Attrs...)
	return appendAttributes(buf, attrs, p)
}

func (c *Code) bytes(p *Pool) ([]byte, error) {
	if len(c.Code) == 0 || len(c.Code) > math.MaxUint16 {
		return nil, fmt.Errorf("code length %d out of range", len(c.Code))
	}
	var buf []byte
	buf = binary.BigEndian.AppendUint16(buf, c.MaxStack)
	buf = binary.BigEndian.AppendUint16(buf, c.MaxLocals)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Handlers)))
	for _, h := range c.Handlers {
		buf = binary.BigEndian.AppendUint16(buf, h.Start)
		buf = binary.BigEndian.AppendUint16(buf, h.End)
		buf = binary.BigEndian.AppendUint16(buf, h.Target)
		buf = binary.BigEndian.AppendUint16(buf, h.Type)
	}

	var attrs []Attribute
	if c.Frames != nil {
		attrs = append(attrs, Attribute{Name: AttrStackMapTable, Data: c.Frames})
	}
	if len(c.Lines) > 0 {
		data := binary.BigEndian.AppendUint16(nil, uint16(len(c.Lines)))
		for _, l := range c.Lines {
			data = binary.BigEndian.AppendUint16(data, l.PC)
			data = binary.BigEndian.AppendUint16(data, l.Line)
		}
		attrs = append(attrs, Attribute{Name: AttrLineNumberTable, Data: data})
	}
	if len(c.Locals) > 0 {
		attrs = append(attrs, Attribute{Name: AttrLocalVariableTable, Data: appendLocals(nil, c.Locals, p)})
	}
	if len(c.LocalTypes) > 0 {
		attrs = append(attrs, Attribute{Name: AttrLocalVariableTypeTable, Data: appendLocals(nil, c.LocalTypes, p)})
	}
	attrs = append(attrs, c.Attrs...)
	return appendAttributes(buf, attrs, p)
}

func appendLocals(buf []byte, locals []LocalVariable, p *Pool) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(locals)))
	for _, lv := range locals {
		buf = binary.BigEndian.AppendUint16(buf, lv.PC)
		buf = binary.BigEndian.AppendUint16(buf, lv.Length)
		buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(lv.Name))
		buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(lv.Desc))
		buf = binary.BigEndian.AppendUint16(buf, lv.Index)
	}
	return buf
}

func appendAnnotationAttrs(attrs []Attribute, visible, invisible []*Annotation, p *Pool) []Attribute {
	if len(visible) > 0 {
		attrs = append(attrs, Attribute{Name: AttrRuntimeVisibleAnnotations, Data: appendAnnotations(nil, visible, p)})
	}
	if len(invisible) > 0 {
		attrs = append(attrs, Attribute{Name: AttrRuntimeInvisibleAnnotations, Data: appendAnnotations(nil, invisible, p)})
	}
	return attrs
}

func appendAttributes(buf []byte, attrs []Attribute, p *Pool) ([]byte, error) {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(attrs)))
	for _, a := range attrs {
		if len(a.Data) > math.MaxInt32 {
			return nil, fmt.Errorf("classfile: attribute %s too large", a.Name)
		}
		buf = binary.BigEndian.AppendUint16(buf, p.AddUtf8(a.Name))
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(a.Data)))
		buf = append(buf, a.Data...)
	}
	return buf, nil
}

func u2Attr(name string, v uint16) Attribute {
	return Attribute{Name: name, Data: binary.BigEndian.AppendUint16(nil, v)}
}
