// Package vm executes decoded JVM methods.
//
// The interpreter keeps a CallStack of Frames. Each Frame owns its local
// slots, its operand stack and a cursor into its method's instruction list.
// The dispatch loop fetches the next instruction from the top frame and
// switches on its opcode; handlers mutate the top frame, push a callee frame
// (invokestatic) or pop the current one (ireturn, return). Execution ends
// when the call stack is empty.
//
// Only 32-bit integers and two external handles are modeled. The single
// supported side effect is java/io/PrintStream.println on the handle
// obtained from java/lang/System.out, which writes to the interpreter's Out
// writer.
//
// Classes are obtained through a ClassProvider each time an invocation
// needs one; caching is the provider's business.
package vm
