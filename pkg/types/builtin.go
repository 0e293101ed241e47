package types

const (
	accPublic   = 0x0001
	accFinal    = 0x0010
	accAbstract = 0x0400
	accIface    = accPublic | accInterface | accAbstract
)

// builtins lets the rewriter work without a JDK on the class path. Entries
// are ordered so that every supertype is defined before its subtypes.
var builtins = []Record{
	{Name: "java/lang/Object", Access: accPublic},
	{Name: "java/io/Serializable", Access: accIface},
	{Name: "java/lang/Cloneable", Access: accIface},
	{Name: "java/lang/Comparable", Access: accIface},
	{Name: "java/lang/CharSequence", Access: accIface},
	{Name: "java/lang/Runnable", Access: accIface},
	{Name: "java/lang/AutoCloseable", Access: accIface},
	{Name: "java/lang/Iterable", Access: accIface},
	{Name: "java/lang/reflect/Type", Access: accIface},
	{Name: "java/util/Collection", Access: accIface, Interfaces: []string{"java/lang/Iterable"}},
	{Name: "java/util/List", Access: accIface, Interfaces: []string{"java/util/Collection"}},
	{Name: "java/util/Set", Access: accIface, Interfaces: []string{"java/util/Collection"}},
	{Name: "java/util/Map", Access: accIface},

	{Name: "java/lang/String", Access: accPublic | accFinal, Interfaces: []string{"java/io/Serializable", "java/lang/Comparable", "java/lang/CharSequence"}},
	{Name: "java/lang/Class", Access: accPublic | accFinal, Interfaces: []string{"java/io/Serializable", "java/lang/reflect/Type"}},
	{Name: "java/lang/Number", Access: accPublic | accAbstract, Interfaces: []string{"java/io/Serializable"}},
	{Name: "java/lang/Void", Access: accPublic | accFinal},
	{Name: "java/lang/Boolean", Access: accPublic | accFinal, Interfaces: []string{"java/io/Serializable", "java/lang/Comparable"}},
	{Name: "java/lang/Character", Access: accPublic | accFinal, Interfaces: []string{"java/io/Serializable", "java/lang/Comparable"}},
	{Name: "java/lang/Byte", Access: accPublic | accFinal, Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
	{Name: "java/lang/Short", Access: accPublic | accFinal, Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
	{Name: "java/lang/Integer", Access: accPublic | accFinal, Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
	{Name: "java/lang/Long", Access: accPublic | accFinal, Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
	{Name: "java/lang/Float", Access: accPublic | accFinal, Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},
	{Name: "java/lang/Double", Access: accPublic | accFinal, Super: "java/lang/Number", Interfaces: []string{"java/lang/Comparable"}},

	{Name: "java/lang/Throwable", Access: accPublic, Interfaces: []string{"java/io/Serializable"}},
	{Name: "java/lang/Exception", Access: accPublic, Super: "java/lang/Throwable"},
	{Name: "java/lang/RuntimeException", Access: accPublic, Super: "java/lang/Exception"},
	{Name: "java/lang/Error", Access: accPublic, Super: "java/lang/Throwable"},
	{Name: "java/lang/IllegalStateException", Access: accPublic, Super: "java/lang/RuntimeException"},
	{Name: "java/io/IOException", Access: accPublic, Super: "java/lang/Exception"},
}
