/*
Package bcgen turns per-function instruction streams into a linked
bytecode module.

A FunctionGenerator accumulates one function's opcode bytes together with
its exception handlers, debug locations and jump table. Jumps are emitted
through a Relocator in their long form and shrunk to the short form once
every label is bound. A finished generator is handed to the
ModuleGenerator that created it, which owns the shared string, regexp,
filename and literal tables and produces the immutable bytecode.Module in
a single call to Generate.

	m := bcgen.NewModuleGenerator(bcgen.DefaultOptions())
	g := bcgen.NewFunctionGenerator(m, 4)
	r := bcgen.NewRelocator(g)
	...
	if _, err := r.Resolve(); err != nil {
		return err
	}
	g.BytecodeGenerationComplete()
	m.SetFunctionGenerator(fn, g)
	m.SetEntryPointIndex(int(m.AddFunction(fn)))
	module := m.Generate()

Misuse of the generators, such as generating a module twice, mutating a
generator after it has been handed off or registering two generators for
one function, panics with an error wrapping one of the Err values below.
*/
package bcgen
