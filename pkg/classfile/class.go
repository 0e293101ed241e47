// Package classfile reads and writes JVM class files.
//
// A parsed Class keeps its original constant pool. Attributes that refer to
// pool indexes (annotations, unknown attributes) are carried as raw bytes, so
// a class can be rewritten and written back as long as the pool is only
// appended to. Offsets into the original code array (StackMapTable, code type
// annotations) do not survive rewriting and are dropped at parse time.
package classfile

// Magic is the class-file signature.
const Magic uint32 = 0xCAFEBABE

// Access flags.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccBridge       uint16 = 0x0040
	AccTransient    uint16 = 0x0080
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
	AccModule       uint16 = 0x8000
)

// Attribute names handled explicitly.
const (
	AttrCode                        = "Code"
	AttrConstantValue               = "ConstantValue"
	AttrExceptions                  = "Exceptions"
	AttrSignature                   = "Signature"
	AttrSourceFile                  = "SourceFile"
	AttrSourceDebugExtension        = "SourceDebugExtension"
	AttrModule                      = "Module"
	AttrMethodParameters            = "MethodParameters"
	AttrLineNumberTable             = "LineNumberTable"
	AttrLocalVariableTable          = "LocalVariableTable"
	AttrLocalVariableTypeTable      = "LocalVariableTypeTable"
	AttrStackMapTable               = "StackMapTable"
	AttrRuntimeVisibleAnnotations   = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations = "RuntimeInvisibleAnnotations"
	AttrRuntimeVisibleTypeAnnos     = "RuntimeVisibleTypeAnnotations"
	AttrRuntimeInvisibleTypeAnnos   = "RuntimeInvisibleTypeAnnotations"
)

// Attribute is an attribute kept verbatim.
type Attribute struct {
	Name string
	Data []byte
}

// Class is a parsed class file.
type Class struct {
	Minor, Major uint16
	Pool         *Pool
	Access       uint16
	Name         string
	Super        string // empty for java/lang/Object and module-info
	Interfaces   []string
	Fields       []*Member
	Methods      []*Member

	SourceFile string
	Signature  string
	Visible    []*Annotation
	Invisible  []*Annotation
	Attrs      []Attribute
}

// Member is a field or a method.
type Member struct {
	Access uint16
	Name   string
	Desc   string

	Signature     string
	ConstantValue uint16 // pool index, fields only
	Exceptions    []string
	Visible       []*Annotation
	Invisible     []*Annotation
	Code          *Code
	Attrs         []Attribute
}

// Code is the body of a method.
type Code struct {
	MaxStack   uint16
	MaxLocals  uint16
	Code       []byte
	Handlers   []Handler
	Lines      []LineNumber
	Locals     []LocalVariable
	LocalTypes []LocalVariable
	Frames     []byte // StackMapTable payload, written when non-nil
	Attrs      []Attribute
}

// Handler is an exception table entry. Type is a pool index; zero catches all.
type Handler struct {
	Start, End, Target uint16
	Type               uint16
}

// LineNumber maps a code offset to a source line.
type LineNumber struct {
	PC, Line uint16
}

// LocalVariable is a LocalVariableTable or LocalVariableTypeTable entry.
// Desc holds the signature for the latter.
type LocalVariable struct {
	PC, Length uint16
	Name, Desc string
	Index      uint16
}

// Version returns the language level of a class-file major version
// (52 is 8, 61 is 17).
func Version(major uint16) int {
	return int(major) - 44
}

// Major returns the class-file major version of a language level.
func Major(version int) uint16 {
	return uint16(version + 44)
}

// Method returns the method with the given name and descriptor, or nil.
func (c *Class) Method(name, desc string) *Member {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// Field returns the field with the given name and descriptor, or nil.
func (c *Class) Field(name, desc string) *Member {
	for _, f := range c.Fields {
		if f.Name == name && f.Desc == desc {
			return f
		}
	}
	return nil
}

// Attr returns the first raw attribute with the given name.
func Attr(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// StripAttr returns attrs without the entries called name.
func StripAttr(attrs []Attribute, name string) []Attribute {
	out := attrs[:0:0]
	for _, a := range attrs {
		if a.Name != name {
			out = append(out, a)
		}
	}
	return out
}
