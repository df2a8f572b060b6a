package bytecode

import (
	"encoding/json"
	"fmt"
)

// Marshal converts a Module into its JSON representation.
func Marshal(m *Module) ([]byte, error) {
	return json.Marshal(stateFromModule(m))
}

// Unmarshal converts a JSON representation into a Module.
func Unmarshal(data []byte) (*Module, error) {
	var state moduleDef
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return moduleFromState(&state)
}

// Serialization types

type exceptionHandlerDef struct {
	Start  uint32 `json:"start"`
	End    uint32 `json:"end"`
	Target uint32 `json:"target"`
}

type locationDef struct {
	Address    uint32 `json:"address"`
	Line       uint32 `json:"line"`
	Column     uint32 `json:"column"`
	FilenameID uint32 `json:"filename_id"`
	Statement  uint32 `json:"statement,omitempty"`
}

type functionDef struct {
	Kind              string                `json:"kind"`
	StrictMode        bool                  `json:"strict_mode,omitempty"`
	ParamCount        uint32                `json:"param_count"`
	EnvironmentSize   uint32                `json:"environment_size"`
	NameID            uint32                `json:"name_id"`
	FrameSize         uint32                `json:"frame_size"`
	Opcodes           []byte                `json:"opcodes"`
	ExceptionHandlers []exceptionHandlerDef `json:"exception_handlers,omitempty"`
	JumpTable         []uint32              `json:"jump_table,omitempty"`
	ReadCacheIndex    uint8                 `json:"highest_read_cache_index"`
	WriteCacheIndex   uint8                 `json:"highest_write_cache_index"`
	Lazy              bool                  `json:"lazy,omitempty"`
	LexicalParentID   *uint32               `json:"lexical_parent_id,omitempty"`
	SourceLocation    *locationDef          `json:"source_location,omitempty"`
	Locations         []locationDef         `json:"locations,omitempty"`
	VariableNames     []string              `json:"variable_names,omitempty"`
}

type cjsModuleDef struct {
	NameID     uint32 `json:"name_id"`
	FunctionID uint32 `json:"function_id"`
}

type regExpDef struct {
	Pattern string `json:"pattern"`
	Flags   string `json:"flags,omitempty"`
}

type moduleDef struct {
	ID                string         `json:"id"`
	EntryPoint        uint32         `json:"entry_point"`
	Functions         []*functionDef `json:"functions"`
	Strings           []string       `json:"strings"`
	Identifiers       []uint32       `json:"identifiers,omitempty"`
	RegExps           []regExpDef    `json:"regexps,omitempty"`
	Filenames         []string       `json:"filenames,omitempty"`
	CJSModules        []cjsModuleDef `json:"cjs_modules,omitempty"`
	CJSModulesStatic  []uint32       `json:"cjs_modules_static,omitempty"`
	CJSModuleOffset   uint32         `json:"cjs_module_offset,omitempty"`
	ArrayBuffer       []byte         `json:"array_buffer,omitempty"`
	ObjectKeyBuffer   []byte         `json:"object_key_buffer,omitempty"`
	ObjectValueBuffer []byte         `json:"object_value_buffer,omitempty"`
	Lazy              bool           `json:"lazy,omitempty"`
}

func stateFromModule(m *Module) *moduleDef {
	state := &moduleDef{
		ID:                m.id.String(),
		EntryPoint:        m.entryPoint,
		Functions:         make([]*functionDef, len(m.functions)),
		Strings:           m.strings.Strings(),
		Identifiers:       m.identifiers,
		Filenames:         m.filenames.Strings(),
		CJSModulesStatic:  m.cjsModulesStatic,
		CJSModuleOffset:   m.cjsModuleOffset,
		ArrayBuffer:       m.arrayBuffer,
		ObjectKeyBuffer:   m.objKeyBuffer,
		ObjectValueBuffer: m.objValBuffer,
		Lazy:              m.lazy,
	}
	for _, re := range m.regexps {
		state.RegExps = append(state.RegExps, regExpDef{Pattern: re.Pattern, Flags: re.Flags})
	}
	for _, c := range m.cjsModules {
		state.CJSModules = append(state.CJSModules, cjsModuleDef{NameID: c.NameID, FunctionID: c.FunctionID})
	}
	for i, fn := range m.functions {
		state.Functions[i] = functionToDef(fn)
	}
	return state
}

func functionToDef(fn *Function) *functionDef {
	def := &functionDef{
		Kind:            fn.kind.String(),
		StrictMode:      fn.strictMode,
		ParamCount:      fn.paramCount,
		EnvironmentSize: fn.environmentSize,
		NameID:          fn.nameID,
		FrameSize:       fn.frameSize,
		Opcodes:         fn.opcodes,
		JumpTable:       fn.jumpTable,
		ReadCacheIndex:  fn.highestReadCacheIndex,
		WriteCacheIndex: fn.highestWriteCacheIndex,
		Lazy:            fn.lazy,
		VariableNames:   fn.variableNames,
	}
	if fn.hasLexicalParent {
		parent := fn.lexicalParentID
		def.LexicalParentID = &parent
	}
	if !fn.sourceLocation.IsZero() {
		loc := locationToDef(fn.sourceLocation)
		def.SourceLocation = &loc
	}
	for _, h := range fn.exceptionHandlers {
		def.ExceptionHandlers = append(def.ExceptionHandlers, exceptionHandlerDef{
			Start:  h.Start,
			End:    h.End,
			Target: h.Target,
		})
	}
	for _, loc := range fn.locations {
		def.Locations = append(def.Locations, locationToDef(loc))
	}
	return def
}

func locationToDef(loc DebugLocation) locationDef {
	return locationDef{
		Address:    loc.Address,
		Line:       loc.Line,
		Column:     loc.Column,
		FilenameID: loc.FilenameID,
		Statement:  loc.Statement,
	}
}

func locationFromDef(def locationDef) DebugLocation {
	return DebugLocation{
		Address:    def.Address,
		Line:       def.Line,
		Column:     def.Column,
		FilenameID: def.FilenameID,
		Statement:  def.Statement,
	}
}

func moduleFromState(state *moduleDef) (*Module, error) {
	params := ModuleParams{
		EntryPoint:        state.EntryPoint,
		Functions:         make([]*Function, len(state.Functions)),
		Strings:           NewStringStorage(state.Strings, false),
		Identifiers:       state.Identifiers,
		Filenames:         NewStringStorage(state.Filenames, false),
		CJSModulesStatic:  state.CJSModulesStatic,
		CJSModuleOffset:   state.CJSModuleOffset,
		ArrayBuffer:       state.ArrayBuffer,
		ObjectKeyBuffer:   state.ObjectKeyBuffer,
		ObjectValueBuffer: state.ObjectValueBuffer,
		Lazy:              state.Lazy,
	}
	for _, re := range state.RegExps {
		params.RegExps = append(params.RegExps, RegExp{Pattern: re.Pattern, Flags: re.Flags})
	}
	for _, c := range state.CJSModules {
		params.CJSModules = append(params.CJSModules, CJSModule{NameID: c.NameID, FunctionID: c.FunctionID})
	}
	for i, def := range state.Functions {
		if def == nil {
			return nil, fmt.Errorf("function %d: missing definition", i)
		}
		fn, err := functionFromDef(def)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		params.Functions[i] = fn
	}
	return NewModule(params), nil
}

func functionFromDef(def *functionDef) (*Function, error) {
	kind, err := ParseDefinitionKind(def.Kind)
	if err != nil {
		return nil, err
	}
	params := FunctionParams{
		Kind:                   kind,
		StrictMode:             def.StrictMode,
		ParamCount:             def.ParamCount,
		EnvironmentSize:        def.EnvironmentSize,
		NameID:                 def.NameID,
		FrameSize:              def.FrameSize,
		Opcodes:                def.Opcodes,
		JumpTable:              def.JumpTable,
		HighestReadCacheIndex:  def.ReadCacheIndex,
		HighestWriteCacheIndex: def.WriteCacheIndex,
		Lazy:                   def.Lazy,
		VariableNames:          def.VariableNames,
	}
	if def.LexicalParentID != nil {
		params.LexicalParentID = *def.LexicalParentID
		params.HasLexicalParent = true
	}
	if def.SourceLocation != nil {
		params.SourceLocation = locationFromDef(*def.SourceLocation)
	}
	for _, h := range def.ExceptionHandlers {
		params.ExceptionHandlers = append(params.ExceptionHandlers, ExceptionHandler{
			Start:  h.Start,
			End:    h.End,
			Target: h.Target,
		})
	}
	for _, loc := range def.Locations {
		params.Locations = append(params.Locations, locationFromDef(loc))
	}
	return NewFunction(params), nil
}
