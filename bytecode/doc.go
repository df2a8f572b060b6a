// Package bytecode provides the immutable output of bytecode generation: a
// linked module holding function records, compacted string tables, regexp
// and filename tables, CommonJS link tables and literal buffers.
//
// # Key Types
//
//   - [Module]: A fully linked module, produced once per compilation unit
//   - [Function]: One function's header, opcode stream and tables
//   - [StringStorage]: The compacted layout of a string table
//   - [ExceptionHandler]: A protected byte range and its handler (value type)
//   - [DebugLocation]: Maps an instruction address to source (value type)
//
// # Immutability Guarantees
//
// All types in this package are immutable after construction:
//
//   - No mutation methods exist on any type
//   - All fields are unexported
//   - Constructors copy input slices to prevent caller mutation
//   - Byte buffers are returned as copies
//
// Index-based access is used for collections:
//
//	mod.FunctionAt(0)
//	mod.StringAt(id)
//	fn.ExceptionHandlerAt(i)
//
// # Package Dependencies
//
// This package depends only on [github.com/risor-io/bcgen/op] within the
// module, so the generators and the disassembler can both build on it.
//
// # Usage
//
// Modules are produced by bcgen.ModuleGenerator and can be:
//
//   - Validated with [Module.Validate]
//   - Serialized to JSON with [Marshal] and read back with [Unmarshal]
//   - Inspected with the dis package
package bytecode
