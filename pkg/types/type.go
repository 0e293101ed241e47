// Package types models JVM types and the class hierarchy the rewriter
// resolves against.
package types

import (
	"fmt"
	"strings"
)

// Type is a JVM field descriptor ("I", "Ljava/lang/String;", "[J"), or "V"
// for void.
type Type string

const (
	Void    Type = "V"
	Boolean Type = "Z"
	Char    Type = "C"
	Byte    Type = "B"
	Short   Type = "S"
	Int     Type = "I"
	Float   Type = "F"
	Long    Type = "J"
	Double  Type = "D"

	Object       Type = "Ljava/lang/Object;"
	Class        Type = "Ljava/lang/Class;"
	String       Type = "Ljava/lang/String;"
	Number       Type = "Ljava/lang/Number;"
	Throwable    Type = "Ljava/lang/Throwable;"
	Cloneable    Type = "Ljava/lang/Cloneable;"
	Serializable Type = "Ljava/io/Serializable;"
)

// Sort classifies a type. The values follow the JVM's own ordering, so every
// primitive sorts below SortArray and the int family is contiguous.
type Sort int

const (
	SortVoid Sort = iota
	SortBoolean
	SortChar
	SortByte
	SortShort
	SortInt
	SortFloat
	SortLong
	SortDouble
	SortArray
	SortObject
)

var sortNames = [...]string{"void", "boolean", "char", "byte", "short", "int", "float", "long", "double", "array", "object"}

func (s Sort) String() string {
	if s >= 0 && int(s) < len(sortNames) {
		return sortNames[s]
	}
	return fmt.Sprintf("Sort(%d)", int(s))
}

// Sort returns the sort of t. Box types sort as objects; see PrimitiveSort.
func (t Type) Sort() Sort {
	if t == "" {
		return SortObject
	}
	switch t[0] {
	case 'V':
		return SortVoid
	case 'Z':
		return SortBoolean
	case 'C':
		return SortChar
	case 'B':
		return SortByte
	case 'S':
		return SortShort
	case 'I':
		return SortInt
	case 'F':
		return SortFloat
	case 'J':
		return SortLong
	case 'D':
		return SortDouble
	case '[':
		return SortArray
	}
	return SortObject
}

// IsPrimitive reports whether t is a primitive or void.
func (t Type) IsPrimitive() bool {
	return t.Sort() < SortArray
}

// Size returns the number of stack or local slots a value of t takes.
func (t Type) Size() int {
	switch t.Sort() {
	case SortVoid:
		return 0
	case SortLong, SortDouble:
		return 2
	}
	return 1
}

// Internal returns the internal name of a class ("java/lang/String"), or the
// descriptor itself for arrays and primitives.
func (t Type) Internal() string {
	if len(t) > 2 && t[0] == 'L' && t[len(t)-1] == ';' {
		return string(t[1 : len(t)-1])
	}
	return string(t)
}

// ClassName returns the source-level name: "java.lang.String", "int[]".
func (t Type) ClassName() string {
	dims := t.Dims()
	var name string
	switch e := t.Element(); e.Sort() {
	case SortObject:
		name = strings.ReplaceAll(e.Internal(), "/", ".")
	default:
		name = e.Sort().String()
	}
	return name + strings.Repeat("[]", dims)
}

// Dims returns the number of array dimensions.
func (t Type) Dims() int {
	n := 0
	for n < len(t) && t[n] == '[' {
		n++
	}
	return n
}

// Element strips every array dimension.
func (t Type) Element() Type {
	return t[t.Dims():]
}

// Component strips one array dimension.
func (t Type) Component() Type {
	if t.Sort() == SortArray {
		return t[1:]
	}
	return t
}

// ArrayOf returns t with dims added dimensions.
func ArrayOf(t Type, dims int) Type {
	return Type(strings.Repeat("[", dims)) + t
}

// ObjectType returns the type of an internal name. Array descriptors are
// accepted as they are.
func ObjectType(internal string) Type {
	if strings.HasPrefix(internal, "[") {
		return Type(internal)
	}
	return Type("L" + internal + ";")
}

// Primitive returns the primitive type of a sort, or "" for reference sorts.
func Primitive(s Sort) Type {
	switch s {
	case SortVoid:
		return Void
	case SortBoolean:
		return Boolean
	case SortChar:
		return Char
	case SortByte:
		return Byte
	case SortShort:
		return Short
	case SortInt:
		return Int
	case SortFloat:
		return Float
	case SortLong:
		return Long
	case SortDouble:
		return Double
	}
	return ""
}

var boxes = map[Type]Sort{
	"Ljava/lang/Void;":      SortVoid,
	"Ljava/lang/Boolean;":   SortBoolean,
	"Ljava/lang/Character;": SortChar,
	"Ljava/lang/Byte;":      SortByte,
	"Ljava/lang/Short;":     SortShort,
	"Ljava/lang/Integer;":   SortInt,
	"Ljava/lang/Float;":     SortFloat,
	"Ljava/lang/Long;":      SortLong,
	"Ljava/lang/Double;":    SortDouble,
}

// Box returns the wrapper class of a primitive type. Other types are
// returned unchanged.
func Box(t Type) Type {
	switch t.Sort() {
	case SortVoid:
		return "Ljava/lang/Void;"
	case SortBoolean:
		return "Ljava/lang/Boolean;"
	case SortChar:
		return "Ljava/lang/Character;"
	case SortByte:
		return "Ljava/lang/Byte;"
	case SortShort:
		return "Ljava/lang/Short;"
	case SortInt:
		return "Ljava/lang/Integer;"
	case SortFloat:
		return "Ljava/lang/Float;"
	case SortLong:
		return "Ljava/lang/Long;"
	case SortDouble:
		return "Ljava/lang/Double;"
	}
	return t
}

// IsBox reports whether t is one of the primitive wrapper classes.
func IsBox(t Type) bool {
	_, ok := boxes[t]
	return ok
}

// PrimitiveSort is Sort with wrapper classes mapped onto the primitive they
// wrap: Integer sorts as SortInt, Void as SortVoid.
func PrimitiveSort(t Type) Sort {
	if s, ok := boxes[t]; ok {
		return s
	}
	return t.Sort()
}

// ParseMethod splits a method descriptor into parameter and return types.
func ParseMethod(desc string) (params []Type, ret Type, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("types: malformed method descriptor %q", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldLen(desc[i:])
		if err != nil {
			return nil, "", fmt.Errorf("types: malformed method descriptor %q: %w", desc, err)
		}
		params = append(params, Type(desc[i:i+n]))
		i += n
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("types: malformed method descriptor %q", desc)
	}
	ret = Type(desc[i+1:])
	if ret != Void {
		if n, err := fieldLen(string(ret)); err != nil || n != len(ret) {
			return nil, "", fmt.Errorf("types: malformed return type in %q", desc)
		}
	}
	return params, ret, nil
}

// ReturnType returns the return type of a method descriptor, or "" when the
// descriptor is malformed.
func ReturnType(desc string) Type {
	i := strings.LastIndexByte(desc, ')')
	if i < 0 {
		return ""
	}
	return Type(desc[i+1:])
}

// MethodDesc builds a method descriptor.
func MethodDesc(ret Type, params ...Type) string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range params {
		b.WriteString(string(p))
	}
	b.WriteByte(')')
	b.WriteString(string(ret))
	return b.String()
}

// Slots returns the total slot size of ts.
func Slots(ts []Type) int {
	n := 0
	for _, t := range ts {
		n += t.Size()
	}
	return n
}

// Valid reports whether t is a well-formed field descriptor.
func (t Type) Valid() bool {
	n, err := fieldLen(string(t))
	return err == nil && n == len(t)
}

func fieldLen(s string) (int, error) {
	i := 0
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i >= len(s) {
		return 0, fmt.Errorf("truncated type")
	}
	switch s[i] {
	case 'Z', 'C', 'B', 'S', 'I', 'F', 'J', 'D':
		return i + 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end <= 1 {
			return 0, fmt.Errorf("unterminated class type")
		}
		return i + end + 1, nil
	}
	return 0, fmt.Errorf("unexpected %q", s[i])
}
