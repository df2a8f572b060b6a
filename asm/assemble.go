package asm

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/risor-io/bcgen/bcgen"
	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/internal/suggest"
	"github.com/rs/zerolog"
)

// function identifies an assembled function in the module function table.
type function struct {
	name   string
	kind   bytecode.DefinitionKind
	strict bool
	params uint32
	env    uint32
}

func (f *function) Name() string                            { return f.name }
func (f *function) DefinitionKind() bytecode.DefinitionKind { return f.kind }
func (f *function) StrictMode() bool                        { return f.strict }
func (f *function) ParamCount() uint32                      { return f.params }
func (f *function) EnvironmentSize() uint32                 { return f.env }

type assembler struct {
	program *Program
	logger  zerolog.Logger
	m       *bcgen.ModuleGenerator
	funcs   map[string]*function
	errs    *multierror.Error

	filenameID  uint32
	hasFilename bool
}

// anonymousFilename names the source of programs parsed without a filename.
const anonymousFilename = "<input>"

// filename returns the filename id used by debug locations, registering the
// program's filename on first use.
func (a *assembler) filename() uint32 {
	if !a.hasFilename {
		name := a.program.Filename
		if name == "" {
			name = anonymousFilename
		}
		a.filenameID = a.m.AddFilename(name)
		a.hasFilename = true
	}
	return a.filenameID
}

func (a *assembler) errorf(format string, args ...any) {
	a.errs = multierror.Append(a.errs, fmt.Errorf(format, args...))
}

// unknownFunction describes a reference to an undeclared function, naming
// the declared functions it may have meant.
func (a *assembler) unknownFunction(name string) string {
	names := make([]string, 0, len(a.program.Functions))
	for _, def := range a.program.Functions {
		names = append(names, def.Name)
	}
	return fmt.Sprintf("unknown function %q%s", name, suggest.Hint(name, names))
}

// Assemble builds a module from the program. Every problem found is
// reported in the returned error; no module is produced in that case.
func Assemble(p *Program, opts bcgen.Options) (*bytecode.Module, error) {
	if len(p.Functions) == 0 {
		return nil, errors.New("program has no functions")
	}
	a := &assembler{
		program: p,
		logger:  opts.Logger,
		m:       bcgen.NewModuleGenerator(opts),
		funcs:   map[string]*function{},
	}
	if p.Filename != "" {
		a.filename()
	}

	// Allocate every function up front so that ids follow declaration
	// order and forward references resolve.
	declared := make([]*function, len(p.Functions))
	for i := range p.Functions {
		def := &p.Functions[i]
		if def.Name == "" {
			a.errorf("function %d: missing name", i)
			continue
		}
		if _, dup := a.funcs[def.Name]; dup {
			a.errorf("function %s: defined more than once", def.Name)
			continue
		}
		kind, err := bytecode.ParseDefinitionKind(def.Kind)
		if err != nil {
			a.errorf("function %s: %v", def.Name, err)
		}
		fn := &function{
			name:   def.Name,
			kind:   kind,
			strict: def.Strict,
			params: def.Params,
			env:    def.Env,
		}
		a.funcs[def.Name] = fn
		a.m.AddFunction(fn)
		declared[i] = fn
	}
	for i, fn := range declared {
		if fn != nil {
			a.assembleFunction(&p.Functions[i], fn)
		}
	}
	a.linkModules()

	entry := p.Entry
	if entry == "" {
		entry = p.Functions[0].Name
	}
	if fn, ok := a.funcs[entry]; ok {
		a.m.SetEntryPointIndex(int(a.m.AddFunction(fn)))
	} else {
		a.errorf("entry: %s", a.unknownFunction(entry))
	}

	if err := a.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return a.m.Generate(), nil
}

// linkModules registers the dynamic and static CommonJS modules.
func (a *assembler) linkModules() {
	for i, mod := range a.program.Modules {
		fn, ok := a.funcs[mod.Function]
		if !ok {
			a.errorf("modules[%d]: %s", i, a.unknownFunction(mod.Function))
			continue
		}
		if mod.Filename == "" {
			a.errorf("modules[%d]: missing filename", i)
			continue
		}
		a.m.AddCJSModule(a.m.AddFunction(fn), a.m.AddString(mod.Filename, false))
	}
	offset := a.m.Options().CJSModuleOffset
	for i, name := range a.program.StaticModules {
		fn, ok := a.funcs[name]
		if !ok {
			a.errorf("static_modules[%d]: %s", i, a.unknownFunction(name))
			continue
		}
		a.m.AddCJSModuleStatic(offset+uint32(i), a.m.AddFunction(fn))
	}
}

func (a *assembler) assembleFunction(def *FunctionDef, fn *function) {
	b := newFunctionBuilder(a, def)
	for i := range def.Code {
		b.item(fmt.Sprintf("code[%d]", i), &def.Code[i])
	}
	for i, h := range def.Handlers {
		b.handler(fmt.Sprintf("handlers[%d]", i), h)
	}
	if b.failed {
		return
	}
	result, err := b.r.Resolve()
	if err != nil {
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				a.errorf("function %s: %v", def.Name, e)
			}
		} else {
			a.errorf("function %s: %v", def.Name, err)
		}
		return
	}
	g := b.g
	if b.readCache >= 0 {
		g.SetHighestReadCacheIndex(uint8(b.readCache))
	}
	if b.writeCache >= 0 {
		g.SetHighestWriteCacheIndex(uint8(b.writeCache))
	}
	g.BytecodeGenerationComplete()

	if def.Line > 0 {
		g.SetSourceLocation(bytecode.DebugLocation{
			Line:       def.Line,
			Column:     def.Column,
			FilenameID: a.filename(),
		})
	}
	if len(def.Variables) > 0 {
		g.SetDebugVariableNames(def.Variables)
	}
	if def.Parent != "" {
		parent, ok := a.funcs[def.Parent]
		if !ok {
			a.errorf("function %s: unknown parent %q", def.Name, def.Parent)
			return
		}
		g.SetLexicalParentID(a.m.AddFunction(parent))
	}
	g.SetLazy(def.Lazy)
	a.m.SetFunctionGenerator(fn, g)

	a.logger.Debug().
		Str("function", def.Name).
		Int("bytes", g.BytecodeSize()).
		Int("passes", result.Passes).
		Int("shrunk", result.Shrunk).
		Msg("assembled function")
}
