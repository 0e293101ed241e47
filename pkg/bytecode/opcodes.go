package bytecode

import "fmt"

// Opcode is a JVM instruction opcode. The values 0xF0 and up are pseudo
// instructions that only exist inside a Body.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x14)
	// ========================================================================

	OpNop        Opcode = 0x00 // No operation
	OpAconstNull Opcode = 0x01 // Push null
	OpIconstM1   Opcode = 0x02 // Push int -1
	OpIconst0    Opcode = 0x03
	OpIconst1    Opcode = 0x04
	OpIconst2    Opcode = 0x05
	OpIconst3    Opcode = 0x06
	OpIconst4    Opcode = 0x07
	OpIconst5    Opcode = 0x08
	OpLconst0    Opcode = 0x09
	OpLconst1    Opcode = 0x0A
	OpFconst0    Opcode = 0x0B
	OpFconst1    Opcode = 0x0C
	OpFconst2    Opcode = 0x0D
	OpDconst0    Opcode = 0x0E
	OpDconst1    Opcode = 0x0F
	OpBipush     Opcode = 0x10 // Push byte: BIPUSH <value:s1>
	OpSipush     Opcode = 0x11 // Push short: SIPUSH <value:s2>
	OpLdc        Opcode = 0x12 // Push constant: LDC <index:u1>
	OpLdcW       Opcode = 0x13 // Push constant: LDC_W <index:u2>
	OpLdc2W      Opcode = 0x14 // Push long/double constant: LDC2_W <index:u2>

	// ========================================================================
	// Loads (0x15-0x35)
	// ========================================================================

	OpIload  Opcode = 0x15 // Push local: xLOAD <slot:u1>
	OpLload  Opcode = 0x16
	OpFload  Opcode = 0x17
	OpDload  Opcode = 0x18
	OpAload  Opcode = 0x19
	OpIload0 Opcode = 0x1A
	OpIload1 Opcode = 0x1B
	OpIload2 Opcode = 0x1C
	OpIload3 Opcode = 0x1D
	OpLload0 Opcode = 0x1E
	OpLload1 Opcode = 0x1F
	OpLload2 Opcode = 0x20
	OpLload3 Opcode = 0x21
	OpFload0 Opcode = 0x22
	OpFload1 Opcode = 0x23
	OpFload2 Opcode = 0x24
	OpFload3 Opcode = 0x25
	OpDload0 Opcode = 0x26
	OpDload1 Opcode = 0x27
	OpDload2 Opcode = 0x28
	OpDload3 Opcode = 0x29
	OpAload0 Opcode = 0x2A
	OpAload1 Opcode = 0x2B
	OpAload2 Opcode = 0x2C
	OpAload3 Opcode = 0x2D
	OpIaload Opcode = 0x2E // Push array element
	OpLaload Opcode = 0x2F
	OpFaload Opcode = 0x30
	OpDaload Opcode = 0x31
	OpAaload Opcode = 0x32
	OpBaload Opcode = 0x33
	OpCaload Opcode = 0x34
	OpSaload Opcode = 0x35

	// ========================================================================
	// Stores (0x36-0x56)
	// ========================================================================

	OpIstore  Opcode = 0x36 // Pop into local: xSTORE <slot:u1>
	OpLstore  Opcode = 0x37
	OpFstore  Opcode = 0x38
	OpDstore  Opcode = 0x39
	OpAstore  Opcode = 0x3A
	OpIstore0 Opcode = 0x3B
	OpIstore1 Opcode = 0x3C
	OpIstore2 Opcode = 0x3D
	OpIstore3 Opcode = 0x3E
	OpLstore0 Opcode = 0x3F
	OpLstore1 Opcode = 0x40
	OpLstore2 Opcode = 0x41
	OpLstore3 Opcode = 0x42
	OpFstore0 Opcode = 0x43
	OpFstore1 Opcode = 0x44
	OpFstore2 Opcode = 0x45
	OpFstore3 Opcode = 0x46
	OpDstore0 Opcode = 0x47
	OpDstore1 Opcode = 0x48
	OpDstore2 Opcode = 0x49
	OpDstore3 Opcode = 0x4A
	OpAstore0 Opcode = 0x4B
	OpAstore1 Opcode = 0x4C
	OpAstore2 Opcode = 0x4D
	OpAstore3 Opcode = 0x4E
	OpIastore Opcode = 0x4F // Store array element
	OpLastore Opcode = 0x50
	OpFastore Opcode = 0x51
	OpDastore Opcode = 0x52
	OpAastore Opcode = 0x53
	OpBastore Opcode = 0x54
	OpCastore Opcode = 0x55
	OpSastore Opcode = 0x56

	// ========================================================================
	// Stack manipulation (0x57-0x5F)
	// ========================================================================

	OpPop    Opcode = 0x57 // Pop one slot
	OpPop2   Opcode = 0x58 // Pop two slots
	OpDup    Opcode = 0x59 // a -> a a
	OpDupX1  Opcode = 0x5A // b a -> a b a
	OpDupX2  Opcode = 0x5B // c b a -> a c b a
	OpDup2   Opcode = 0x5C // b a -> b a b a
	OpDup2X1 Opcode = 0x5D // c b a -> b a c b a
	OpDup2X2 Opcode = 0x5E // d c b a -> b a d c b a
	OpSwap   Opcode = 0x5F // b a -> a b

	// ========================================================================
	// Arithmetic (0x60-0x84)
	// ========================================================================

	OpIadd  Opcode = 0x60
	OpLadd  Opcode = 0x61
	OpFadd  Opcode = 0x62
	OpDadd  Opcode = 0x63
	OpIsub  Opcode = 0x64
	OpLsub  Opcode = 0x65
	OpFsub  Opcode = 0x66
	OpDsub  Opcode = 0x67
	OpImul  Opcode = 0x68
	OpLmul  Opcode = 0x69
	OpFmul  Opcode = 0x6A
	OpDmul  Opcode = 0x6B
	OpIdiv  Opcode = 0x6C
	OpLdiv  Opcode = 0x6D
	OpFdiv  Opcode = 0x6E
	OpDdiv  Opcode = 0x6F
	OpIrem  Opcode = 0x70
	OpLrem  Opcode = 0x71
	OpFrem  Opcode = 0x72
	OpDrem  Opcode = 0x73
	OpIneg  Opcode = 0x74
	OpLneg  Opcode = 0x75
	OpFneg  Opcode = 0x76
	OpDneg  Opcode = 0x77
	OpIshl  Opcode = 0x78
	OpLshl  Opcode = 0x79
	OpIshr  Opcode = 0x7A
	OpLshr  Opcode = 0x7B
	OpIushr Opcode = 0x7C
	OpLushr Opcode = 0x7D
	OpIand  Opcode = 0x7E
	OpLand  Opcode = 0x7F
	OpIor   Opcode = 0x80
	OpLor   Opcode = 0x81
	OpIxor  Opcode = 0x82
	OpLxor  Opcode = 0x83
	OpIinc  Opcode = 0x84 // Increment local: IINC <slot:u1> <delta:s1>

	// ========================================================================
	// Conversions (0x85-0x93)
	// ========================================================================

	OpI2l Opcode = 0x85
	OpI2f Opcode = 0x86
	OpI2d Opcode = 0x87
	OpL2i Opcode = 0x88
	OpL2f Opcode = 0x89
	OpL2d Opcode = 0x8A
	OpF2i Opcode = 0x8B
	OpF2l Opcode = 0x8C
	OpF2d Opcode = 0x8D
	OpD2i Opcode = 0x8E
	OpD2l Opcode = 0x8F
	OpD2f Opcode = 0x90
	OpI2b Opcode = 0x91
	OpI2c Opcode = 0x92
	OpI2s Opcode = 0x93

	// ========================================================================
	// Comparisons (0x94-0xA6)
	// ========================================================================

	OpLcmp     Opcode = 0x94
	OpFcmpl    Opcode = 0x95
	OpFcmpg    Opcode = 0x96
	OpDcmpl    Opcode = 0x97
	OpDcmpg    Opcode = 0x98
	OpIfeq     Opcode = 0x99 // Compare with zero: IFxx <offset:s2>
	OpIfne     Opcode = 0x9A
	OpIflt     Opcode = 0x9B
	OpIfge     Opcode = 0x9C
	OpIfgt     Opcode = 0x9D
	OpIfle     Opcode = 0x9E
	OpIfIcmpeq Opcode = 0x9F // Compare ints: IF_ICMPxx <offset:s2>
	OpIfIcmpne Opcode = 0xA0
	OpIfIcmplt Opcode = 0xA1
	OpIfIcmpge Opcode = 0xA2
	OpIfIcmpgt Opcode = 0xA3
	OpIfIcmple Opcode = 0xA4
	OpIfAcmpeq Opcode = 0xA5
	OpIfAcmpne Opcode = 0xA6

	// ========================================================================
	// Control (0xA7-0xB1)
	// ========================================================================

	OpGoto         Opcode = 0xA7 // GOTO <offset:s2>
	OpJsr          Opcode = 0xA8
	OpRet          Opcode = 0xA9
	OpTableswitch  Opcode = 0xAA // Padded, variable length
	OpLookupswitch Opcode = 0xAB // Padded, variable length
	OpIreturn      Opcode = 0xAC
	OpLreturn      Opcode = 0xAD
	OpFreturn      Opcode = 0xAE
	OpDreturn      Opcode = 0xAF
	OpAreturn      Opcode = 0xB0
	OpReturn       Opcode = 0xB1

	// ========================================================================
	// References (0xB2-0xC3)
	// ========================================================================

	OpGetstatic       Opcode = 0xB2 // Field access: <fieldref:u2>
	OpPutstatic       Opcode = 0xB3
	OpGetfield        Opcode = 0xB4
	OpPutfield        Opcode = 0xB5
	OpInvokevirtual   Opcode = 0xB6 // Invoke: <methodref:u2>
	OpInvokespecial   Opcode = 0xB7
	OpInvokestatic    Opcode = 0xB8
	OpInvokeinterface Opcode = 0xB9 // <methodref:u2> <count:u1> 0
	OpInvokedynamic   Opcode = 0xBA // <indy:u2> 0 0
	OpNew             Opcode = 0xBB // NEW <class:u2>
	OpNewarray        Opcode = 0xBC // NEWARRAY <atype:u1>
	OpAnewarray       Opcode = 0xBD
	OpArraylength     Opcode = 0xBE
	OpAthrow          Opcode = 0xBF
	OpCheckcast       Opcode = 0xC0
	OpInstanceof      Opcode = 0xC1
	OpMonitorenter    Opcode = 0xC2
	OpMonitorexit     Opcode = 0xC3

	// ========================================================================
	// Extended (0xC4-0xC9)
	// ========================================================================

	OpWide           Opcode = 0xC4 // Widens the following local access
	OpMultianewarray Opcode = 0xC5 // <class:u2> <dims:u1>
	OpIfnull         Opcode = 0xC6
	OpIfnonnull      Opcode = 0xC7
	OpGotoW          Opcode = 0xC8
	OpJsrW           Opcode = 0xC9

	// ========================================================================
	// Pseudo instructions (0xF0-0xFF), never encoded
	// ========================================================================

	OpLabel Opcode = 0xF0 // Marks a position
	OpLine  Opcode = 0xF1 // Source line of what follows
)

// OpcodeInfo contains metadata about an opcode. Stack effects are counted in
// slots (long and double take two). -1 marks an effect or operand length that
// depends on the operands.
type OpcodeInfo struct {
	Name       string
	StackPop   int
	StackPush  int
	OperandLen int
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Constants
	OpNop:        {"NOP", 0, 0, 0},
	OpAconstNull: {"ACONST_NULL", 0, 1, 0},
	OpIconstM1:   {"ICONST_M1", 0, 1, 0},
	OpIconst0:    {"ICONST_0", 0, 1, 0},
	OpIconst1:    {"ICONST_1", 0, 1, 0},
	OpIconst2:    {"ICONST_2", 0, 1, 0},
	OpIconst3:    {"ICONST_3", 0, 1, 0},
	OpIconst4:    {"ICONST_4", 0, 1, 0},
	OpIconst5:    {"ICONST_5", 0, 1, 0},
	OpLconst0:    {"LCONST_0", 0, 2, 0},
	OpLconst1:    {"LCONST_1", 0, 2, 0},
	OpFconst0:    {"FCONST_0", 0, 1, 0},
	OpFconst1:    {"FCONST_1", 0, 1, 0},
	OpFconst2:    {"FCONST_2", 0, 1, 0},
	OpDconst0:    {"DCONST_0", 0, 2, 0},
	OpDconst1:    {"DCONST_1", 0, 2, 0},
	OpBipush:     {"BIPUSH", 0, 1, 1},
	OpSipush:     {"SIPUSH", 0, 1, 2},
	OpLdc:        {"LDC", 0, -1, 1},
	OpLdcW:       {"LDC_W", 0, -1, 2},
	OpLdc2W:      {"LDC2_W", 0, 2, 2},

	// Loads
	OpIload:  {"ILOAD", 0, 1, 1},
	OpLload:  {"LLOAD", 0, 2, 1},
	OpFload:  {"FLOAD", 0, 1, 1},
	OpDload:  {"DLOAD", 0, 2, 1},
	OpAload:  {"ALOAD", 0, 1, 1},
	OpIload0: {"ILOAD_0", 0, 1, 0},
	OpIload1: {"ILOAD_1", 0, 1, 0},
	OpIload2: {"ILOAD_2", 0, 1, 0},
	OpIload3: {"ILOAD_3", 0, 1, 0},
	OpLload0: {"LLOAD_0", 0, 2, 0},
	OpLload1: {"LLOAD_1", 0, 2, 0},
	OpLload2: {"LLOAD_2", 0, 2, 0},
	OpLload3: {"LLOAD_3", 0, 2, 0},
	OpFload0: {"FLOAD_0", 0, 1, 0},
	OpFload1: {"FLOAD_1", 0, 1, 0},
	OpFload2: {"FLOAD_2", 0, 1, 0},
	OpFload3: {"FLOAD_3", 0, 1, 0},
	OpDload0: {"DLOAD_0", 0, 2, 0},
	OpDload1: {"DLOAD_1", 0, 2, 0},
	OpDload2: {"DLOAD_2", 0, 2, 0},
	OpDload3: {"DLOAD_3", 0, 2, 0},
	OpAload0: {"ALOAD_0", 0, 1, 0},
	OpAload1: {"ALOAD_1", 0, 1, 0},
	OpAload2: {"ALOAD_2", 0, 1, 0},
	OpAload3: {"ALOAD_3", 0, 1, 0},
	OpIaload: {"IALOAD", 2, 1, 0},
	OpLaload: {"LALOAD", 2, 2, 0},
	OpFaload: {"FALOAD", 2, 1, 0},
	OpDaload: {"DALOAD", 2, 2, 0},
	OpAaload: {"AALOAD", 2, 1, 0},
	OpBaload: {"BALOAD", 2, 1, 0},
	OpCaload: {"CALOAD", 2, 1, 0},
	OpSaload: {"SALOAD", 2, 1, 0},

	// Stores
	OpIstore:  {"ISTORE", 1, 0, 1},
	OpLstore:  {"LSTORE", 2, 0, 1},
	OpFstore:  {"FSTORE", 1, 0, 1},
	OpDstore:  {"DSTORE", 2, 0, 1},
	OpAstore:  {"ASTORE", 1, 0, 1},
	OpIstore0: {"ISTORE_0", 1, 0, 0},
	OpIstore1: {"ISTORE_1", 1, 0, 0},
	OpIstore2: {"ISTORE_2", 1, 0, 0},
	OpIstore3: {"ISTORE_3", 1, 0, 0},
	OpLstore0: {"LSTORE_0", 2, 0, 0},
	OpLstore1: {"LSTORE_1", 2, 0, 0},
	OpLstore2: {"LSTORE_2", 2, 0, 0},
	OpLstore3: {"LSTORE_3", 2, 0, 0},
	OpFstore0: {"FSTORE_0", 1, 0, 0},
	OpFstore1: {"FSTORE_1", 1, 0, 0},
	OpFstore2: {"FSTORE_2", 1, 0, 0},
	OpFstore3: {"FSTORE_3", 1, 0, 0},
	OpDstore0: {"DSTORE_0", 2, 0, 0},
	OpDstore1: {"DSTORE_1", 2, 0, 0},
	OpDstore2: {"DSTORE_2", 2, 0, 0},
	OpDstore3: {"DSTORE_3", 2, 0, 0},
	OpAstore0: {"ASTORE_0", 1, 0, 0},
	OpAstore1: {"ASTORE_1", 1, 0, 0},
	OpAstore2: {"ASTORE_2", 1, 0, 0},
	OpAstore3: {"ASTORE_3", 1, 0, 0},
	OpIastore: {"IASTORE", 3, 0, 0},
	OpLastore: {"LASTORE", 4, 0, 0},
	OpFastore: {"FASTORE", 3, 0, 0},
	OpDastore: {"DASTORE", 4, 0, 0},
	OpAastore: {"AASTORE", 3, 0, 0},
	OpBastore: {"BASTORE", 3, 0, 0},
	OpCastore: {"CASTORE", 3, 0, 0},
	OpSastore: {"SASTORE", 3, 0, 0},

	// Stack manipulation
	OpPop:    {"POP", 1, 0, 0},
	OpPop2:   {"POP2", 2, 0, 0},
	OpDup:    {"DUP", 1, 2, 0},
	OpDupX1:  {"DUP_X1", 2, 3, 0},
	OpDupX2:  {"DUP_X2", 3, 4, 0},
	OpDup2:   {"DUP2", 2, 4, 0},
	OpDup2X1: {"DUP2_X1", 3, 5, 0},
	OpDup2X2: {"DUP2_X2", 4, 6, 0},
	OpSwap:   {"SWAP", 2, 2, 0},

	// Arithmetic
	OpIadd:  {"IADD", 2, 1, 0},
	OpLadd:  {"LADD", 4, 2, 0},
	OpFadd:  {"FADD", 2, 1, 0},
	OpDadd:  {"DADD", 4, 2, 0},
	OpIsub:  {"ISUB", 2, 1, 0},
	OpLsub:  {"LSUB", 4, 2, 0},
	OpFsub:  {"FSUB", 2, 1, 0},
	OpDsub:  {"DSUB", 4, 2, 0},
	OpImul:  {"IMUL", 2, 1, 0},
	OpLmul:  {"LMUL", 4, 2, 0},
	OpFmul:  {"FMUL", 2, 1, 0},
	OpDmul:  {"DMUL", 4, 2, 0},
	OpIdiv:  {"IDIV", 2, 1, 0},
	OpLdiv:  {"LDIV", 4, 2, 0},
	OpFdiv:  {"FDIV", 2, 1, 0},
	OpDdiv:  {"DDIV", 4, 2, 0},
	OpIrem:  {"IREM", 2, 1, 0},
	OpLrem:  {"LREM", 4, 2, 0},
	OpFrem:  {"FREM", 2, 1, 0},
	OpDrem:  {"DREM", 4, 2, 0},
	OpIneg:  {"INEG", 1, 1, 0},
	OpLneg:  {"LNEG", 2, 2, 0},
	OpFneg:  {"FNEG", 1, 1, 0},
	OpDneg:  {"DNEG", 2, 2, 0},
	OpIshl:  {"ISHL", 2, 1, 0},
	OpLshl:  {"LSHL", 3, 2, 0},
	OpIshr:  {"ISHR", 2, 1, 0},
	OpLshr:  {"LSHR", 3, 2, 0},
	OpIushr: {"IUSHR", 2, 1, 0},
	OpLushr: {"LUSHR", 3, 2, 0},
	OpIand:  {"IAND", 2, 1, 0},
	OpLand:  {"LAND", 4, 2, 0},
	OpIor:   {"IOR", 2, 1, 0},
	OpLor:   {"LOR", 4, 2, 0},
	OpIxor:  {"IXOR", 2, 1, 0},
	OpLxor:  {"LXOR", 4, 2, 0},
	OpIinc:  {"IINC", 0, 0, 2},

	// Conversions
	OpI2l: {"I2L", 1, 2, 0},
	OpI2f: {"I2F", 1, 1, 0},
	OpI2d: {"I2D", 1, 2, 0},
	OpL2i: {"L2I", 2, 1, 0},
	OpL2f: {"L2F", 2, 1, 0},
	OpL2d: {"L2D", 2, 2, 0},
	OpF2i: {"F2I", 1, 1, 0},
	OpF2l: {"F2L", 1, 2, 0},
	OpF2d: {"F2D", 1, 2, 0},
	OpD2i: {"D2I", 2, 1, 0},
	OpD2l: {"D2L", 2, 2, 0},
	OpD2f: {"D2F", 2, 1, 0},
	OpI2b: {"I2B", 1, 1, 0},
	OpI2c: {"I2C", 1, 1, 0},
	OpI2s: {"I2S", 1, 1, 0},

	// Comparisons
	OpLcmp:     {"LCMP", 4, 1, 0},
	OpFcmpl:    {"FCMPL", 2, 1, 0},
	OpFcmpg:    {"FCMPG", 2, 1, 0},
	OpDcmpl:    {"DCMPL", 4, 1, 0},
	OpDcmpg:    {"DCMPG", 4, 1, 0},
	OpIfeq:     {"IFEQ", 1, 0, 2},
	OpIfne:     {"IFNE", 1, 0, 2},
	OpIflt:     {"IFLT", 1, 0, 2},
	OpIfge:     {"IFGE", 1, 0, 2},
	OpIfgt:     {"IFGT", 1, 0, 2},
	OpIfle:     {"IFLE", 1, 0, 2},
	OpIfIcmpeq: {"IF_ICMPEQ", 2, 0, 2},
	OpIfIcmpne: {"IF_ICMPNE", 2, 0, 2},
	OpIfIcmplt: {"IF_ICMPLT", 2, 0, 2},
	OpIfIcmpge: {"IF_ICMPGE", 2, 0, 2},
	OpIfIcmpgt: {"IF_ICMPGT", 2, 0, 2},
	OpIfIcmple: {"IF_ICMPLE", 2, 0, 2},
	OpIfAcmpeq: {"IF_ACMPEQ", 2, 0, 2},
	OpIfAcmpne: {"IF_ACMPNE", 2, 0, 2},

	// Control
	OpGoto:         {"GOTO", 0, 0, 2},
	OpJsr:          {"JSR", 0, 1, 2},
	OpRet:          {"RET", 0, 0, 1},
	OpTableswitch:  {"TABLESWITCH", 1, 0, -1},
	OpLookupswitch: {"LOOKUPSWITCH", 1, 0, -1},
	OpIreturn:      {"IRETURN", 1, 0, 0},
	OpLreturn:      {"LRETURN", 2, 0, 0},
	OpFreturn:      {"FRETURN", 1, 0, 0},
	OpDreturn:      {"DRETURN", 2, 0, 0},
	OpAreturn:      {"ARETURN", 1, 0, 0},
	OpReturn:       {"RETURN", 0, 0, 0},

	// References
	OpGetstatic:       {"GETSTATIC", 0, -1, 2},
	OpPutstatic:       {"PUTSTATIC", -1, 0, 2},
	OpGetfield:        {"GETFIELD", 1, -1, 2},
	OpPutfield:        {"PUTFIELD", -1, 0, 2},
	OpInvokevirtual:   {"INVOKEVIRTUAL", -1, -1, 2},
	OpInvokespecial:   {"INVOKESPECIAL", -1, -1, 2},
	OpInvokestatic:    {"INVOKESTATIC", -1, -1, 2},
	OpInvokeinterface: {"INVOKEINTERFACE", -1, -1, 4},
	OpInvokedynamic:   {"INVOKEDYNAMIC", -1, -1, 4},
	OpNew:             {"NEW", 0, 1, 2},
	OpNewarray:        {"NEWARRAY", 1, 1, 1},
	OpAnewarray:       {"ANEWARRAY", 1, 1, 2},
	OpArraylength:     {"ARRAYLENGTH", 1, 1, 0},
	OpAthrow:          {"ATHROW", 1, 0, 0},
	OpCheckcast:       {"CHECKCAST", 1, 1, 2},
	OpInstanceof:      {"INSTANCEOF", 1, 1, 2},
	OpMonitorenter:    {"MONITORENTER", 1, 0, 0},
	OpMonitorexit:     {"MONITOREXIT", 1, 0, 0},

	// Extended
	OpWide:           {"WIDE", 0, 0, -1},
	OpMultianewarray: {"MULTIANEWARRAY", -1, 1, 3},
	OpIfnull:         {"IFNULL", 1, 0, 2},
	OpIfnonnull:      {"IFNONNULL", 1, 0, 2},
	OpGotoW:          {"GOTO_W", 0, 0, 4},
	OpJsrW:           {"JSR_W", 0, 1, 4},

	// Pseudo instructions
	OpLabel: {"LABEL", 0, 0, 0},
	OpLine:  {"LINE", 0, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a default OpcodeInfo with name "UNKNOWN" if the opcode is not defined.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), StackPop: 0, StackPush: 0, OperandLen: 0}
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes, or -1 when it depends on
// the position or the operands themselves.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// IsJump reports whether the opcode transfers control to a single label.
func (op Opcode) IsJump() bool {
	return (op >= OpIfeq && op <= OpJsr) || (op >= OpIfnull && op <= OpJsrW)
}

// IsConditional reports whether the opcode is a two-way branch.
func (op Opcode) IsConditional() bool {
	return (op >= OpIfeq && op <= OpIfAcmpne) || op == OpIfnull || op == OpIfnonnull
}

// IsSwitch reports whether the opcode is a table or lookup switch.
func (op Opcode) IsSwitch() bool {
	return op == OpTableswitch || op == OpLookupswitch
}

// IsReturn reports whether the opcode returns from the method.
func (op Opcode) IsReturn() bool {
	return op >= OpIreturn && op <= OpReturn
}

// IsTerminal reports whether control never falls through to the next
// instruction.
func (op Opcode) IsTerminal() bool {
	switch op {
	case OpGoto, OpGotoW, OpRet, OpTableswitch, OpLookupswitch, OpAthrow:
		return true
	}
	return op.IsReturn()
}

// IsInvoke reports whether the opcode is a method invocation.
func (op Opcode) IsInvoke() bool {
	return op >= OpInvokevirtual && op <= OpInvokedynamic
}

// IsPseudo reports whether the opcode only exists inside a Body.
func (op Opcode) IsPseudo() bool {
	return op >= OpLabel
}

// Negate returns the conditional jump with the opposite condition.
func (op Opcode) Negate() Opcode {
	switch op {
	case OpIfnull:
		return OpIfnonnull
	case OpIfnonnull:
		return OpIfnull
	}
	if op >= OpIfeq && op <= OpIfAcmpne {
		// pairs are adjacent: EQ/NE, LT/GE, GT/LE
		return OpIfeq + ((op - OpIfeq) ^ 1)
	}
	return op
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
