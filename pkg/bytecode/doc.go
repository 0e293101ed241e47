// Package bytecode converts JVM method code between its class-file encoding
// and a symbolic instruction stream.
//
// # Instruction model
//
// A Body is a flat list of Insn values. Branch targets are *Label values
// placed by OpLabel pseudo instructions, and source lines are OpLine pseudo
// instructions ahead of the instruction they describe. Encodings are
// normalized on decode (ALOAD_0 becomes ALOAD 0, LDC_W becomes LDC, GOTO_W
// becomes GOTO) so that rewriting code only ever sees one form.
//
// # Analysis
//
// Frame models the local variable array and operand stack in JVM slots, with
// longs and doubles taking two. Frame.Execute steps a single instruction and
// Analyze runs the data-flow fixpoint over a whole body, merging reference
// types through a Hierarchy.
//
// # Assembly
//
// Assemble is the inverse of Decode. It picks compact encodings, widens jumps
// that do not fit in 16 bits, recomputes max_stack and max_locals, and for
// class files of version 50 and up writes a compressed StackMapTable.
// Unreachable code is replaced by NOP ... ATHROW, as the verifier requires
// every instruction to have a frame.
package bytecode
