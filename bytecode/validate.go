package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/risor-io/bcgen/op"
)

// Validate checks the internal consistency of the module: every table
// reference is in range, every opcode stream decodes cleanly and every
// jump, handler and debug offset lands on an instruction boundary. All
// problems found are returned together.
func (m *Module) Validate() error {
	var result *multierror.Error
	fnCount := uint32(len(m.functions))
	strCount := uint32(m.strings.Count())

	if m.entryPoint >= fnCount {
		result = multierror.Append(result,
			fmt.Errorf("entry point %d out of range (%d functions)", m.entryPoint, fnCount))
	}
	for i, id := range m.identifiers {
		if id >= strCount {
			result = multierror.Append(result, fmt.Errorf("identifier %d: string id %d out of range", i, id))
		}
	}
	for i, c := range m.cjsModules {
		if c.FunctionID >= fnCount {
			result = multierror.Append(result, fmt.Errorf("cjs module %d: function id %d out of range", i, c.FunctionID))
		}
		if c.NameID >= strCount {
			result = multierror.Append(result, fmt.Errorf("cjs module %d: name id %d out of range", i, c.NameID))
		}
	}
	for i, fnID := range m.cjsModulesStatic {
		if fnID >= fnCount {
			result = multierror.Append(result, fmt.Errorf("static cjs module %d: function id %d out of range", i, fnID))
		}
	}
	for i, re := range m.regexps {
		if _, err := CompileRegExp(re.Pattern, re.Flags); err != nil {
			result = multierror.Append(result, fmt.Errorf("regexp %d: %w", i, err))
		}
	}
	for i, fn := range m.functions {
		if err := m.validateFunction(fn); err != nil {
			result = multierror.Append(result, fmt.Errorf("function %d: %w", i, err))
		}
	}
	return result.ErrorOrNil()
}

func (m *Module) validateFunction(fn *Function) error {
	var result *multierror.Error
	size := uint32(len(fn.opcodes))
	fnCount := uint32(len(m.functions))

	if fn.nameID >= uint32(m.strings.Count()) {
		result = multierror.Append(result, fmt.Errorf("name id %d out of range", fn.nameID))
	}
	if parent, ok := fn.LexicalParentID(); ok && parent >= fnCount {
		result = multierror.Append(result, fmt.Errorf("lexical parent %d out of range", parent))
	}

	// Collect instruction boundaries, including the end of the stream.
	boundaries := map[uint32]bool{size: true}
	type jumpRef struct{ at, target int64 }
	var jumps []jumpRef
	var switches []uint32
	for pc := uint32(0); pc < size; {
		info := op.GetInfo(op.Code(fn.opcodes[pc]))
		if !info.Valid() {
			result = multierror.Append(result, fmt.Errorf("invalid opcode %d at %d", fn.opcodes[pc], pc))
			return result
		}
		if pc+uint32(info.Size) > size {
			result = multierror.Append(result, fmt.Errorf("truncated %s at %d", info.Name, pc))
			return result
		}
		boundaries[pc] = true
		for n, kind := range info.Operands {
			at := pc + uint32(info.OperandOffset(n))
			switch kind {
			case op.Addr8:
				jumps = append(jumps, jumpRef{int64(pc), int64(pc) + int64(int8(fn.opcodes[at]))})
			case op.Addr32:
				if info.Code == op.SwitchImm && n == 1 {
					switches = append(switches, pc)
					continue
				}
				disp := int32(binary.LittleEndian.Uint32(fn.opcodes[at:]))
				jumps = append(jumps, jumpRef{int64(pc), int64(pc) + int64(disp)})
			case op.Function16:
				if id := binary.LittleEndian.Uint16(fn.opcodes[at:]); uint32(id) >= fnCount {
					result = multierror.Append(result, fmt.Errorf("function id %d out of range at %d", id, pc))
				}
			case op.RegExp32:
				if id := binary.LittleEndian.Uint32(fn.opcodes[at:]); id >= uint32(len(m.regexps)) {
					result = multierror.Append(result, fmt.Errorf("regexp id %d out of range at %d", id, pc))
				}
			}
		}
		pc += uint32(info.Size)
	}
	for _, j := range jumps {
		if j.target < 0 || j.target > int64(size) || !boundaries[uint32(j.target)] {
			result = multierror.Append(result, fmt.Errorf("jump at %d targets %d, not an instruction", j.at, j.target))
		}
	}
	for _, pc := range switches {
		base := int64(pc) + int64(int32(binary.LittleEndian.Uint32(fn.opcodes[pc+2:])))
		lo := binary.LittleEndian.Uint32(fn.opcodes[pc+10:])
		hi := binary.LittleEndian.Uint32(fn.opcodes[pc+14:])
		start := (base - int64(size)) / 4
		count := int64(hi) - int64(lo) + 1
		if base < int64(size) || (base-int64(size))%4 != 0 || count < 1 || start+count > int64(len(fn.jumpTable)) {
			result = multierror.Append(result, fmt.Errorf("switch at %d: jump table [%d, +%d) out of range", pc, start, count))
			continue
		}
		for _, rel := range fn.jumpTable[start : start+count] {
			target := int64(pc) + int64(int32(rel))
			if target < 0 || target > int64(size) || !boundaries[uint32(target)] {
				result = multierror.Append(result, fmt.Errorf("switch at %d targets %d, not an instruction", pc, target))
			}
		}
	}
	for i, h := range fn.exceptionHandlers {
		if h.Start > h.End || h.End > size {
			result = multierror.Append(result, fmt.Errorf("handler %d: invalid range [%d, %d)", i, h.Start, h.End))
		} else if !boundaries[h.Start] || !boundaries[h.End] {
			result = multierror.Append(result, fmt.Errorf("handler %d: range [%d, %d) splits an instruction", i, h.Start, h.End))
		}
		if !boundaries[h.Target] || h.Target >= size {
			result = multierror.Append(result, fmt.Errorf("handler %d: target %d is not an instruction", i, h.Target))
		}
	}
	for i, loc := range fn.locations {
		if !boundaries[loc.Address] || loc.Address >= size {
			result = multierror.Append(result, fmt.Errorf("debug location %d: address %d is not an instruction", i, loc.Address))
		}
		if loc.FilenameID >= uint32(m.filenames.Count()) {
			result = multierror.Append(result, fmt.Errorf("debug location %d: filename id %d out of range", i, loc.FilenameID))
		}
	}
	return result.ErrorOrNil()
}
