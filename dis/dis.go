// Package dis supports analysis of generated modules by disassembling the
// opcode streams of their functions.
package dis

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/internal/table"
	"github.com/risor-io/bcgen/literal"
	"github.com/risor-io/bcgen/op"
)

// Instruction represents a single decoded instruction and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Opcode     op.Code
	Operands   []int64
	Annotation string
}

var (
	bold    = color.New(color.Bold).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
	cyan    = color.New(color.FgHiCyan).SprintFunc()
)

// Disassemble decodes the function with the given id.
func Disassemble(m *bytecode.Module, fnIndex int) ([]Instruction, error) {
	if fnIndex < 0 || fnIndex >= m.FunctionCount() {
		return nil, fmt.Errorf("function index out of range: %d", fnIndex)
	}
	code := m.FunctionAt(fnIndex).Opcodes()
	var instructions []Instruction
	for offset := 0; offset < len(code); {
		info := op.GetInfo(op.Code(code[offset]))
		if !info.Valid() {
			return nil, fmt.Errorf("invalid opcode %d at offset %d", code[offset], offset)
		}
		if offset+info.Size > len(code) {
			return nil, fmt.Errorf("truncated %s at offset %d", info.Name, offset)
		}
		operands := decodeOperands(info, code[offset:])
		annotation, err := annotate(m, offset, info, operands)
		if err != nil {
			return nil, fmt.Errorf("%s at offset %d: %w", info.Name, offset, err)
		}
		instructions = append(instructions, Instruction{
			Offset:     offset,
			Name:       info.Name,
			Opcode:     info.Code,
			Operands:   operands,
			Annotation: annotation,
		})
		offset += info.Size
	}
	return instructions, nil
}

func decodeOperands(info op.Info, code []byte) []int64 {
	operands := make([]int64, len(info.Operands))
	for i, kind := range info.Operands {
		at := info.OperandOffset(i)
		switch kind.Width() {
		case 1:
			if kind.Signed() {
				operands[i] = int64(int8(code[at]))
			} else {
				operands[i] = int64(code[at])
			}
		case 2:
			operands[i] = int64(binary.LittleEndian.Uint16(code[at:]))
		case 4:
			v := binary.LittleEndian.Uint32(code[at:])
			if kind.Signed() {
				operands[i] = int64(int32(v))
			} else {
				operands[i] = int64(v)
			}
		}
	}
	return operands
}

func annotate(m *bytecode.Module, offset int, info op.Info, operands []int64) (string, error) {
	switch info.Code {
	case op.NewArrayWithBuffer:
		lits, err := decodeBuffer(m, m.ArrayBuffer(), operands[3], int(operands[2]))
		if err != nil {
			return "", err
		}
		return "[" + strings.Join(lits, ", ") + "]", nil
	case op.NewObjectWithBuffer:
		count := int(operands[2])
		keys, err := decodeBuffer(m, m.ObjectKeyBuffer(), operands[3], count)
		if err != nil {
			return "", err
		}
		vals, err := decodeBuffer(m, m.ObjectValueBuffer(), operands[4], count)
		if err != nil {
			return "", err
		}
		pairs := make([]string, count)
		for i := range pairs {
			pairs[i] = keys[i] + ": " + vals[i]
		}
		return "{" + strings.Join(pairs, ", ") + "}", nil
	case op.SwitchImm:
		return fmt.Sprintf("%d..%d, default -> %d", operands[3], operands[4], offset+int(operands[2])), nil
	}
	var notes []string
	for i, kind := range info.Operands {
		v := operands[i]
		switch kind {
		case op.String16, op.String32, op.Ident16:
			if v >= int64(m.StringCount()) {
				return "", fmt.Errorf("string index out of range: %d", v)
			}
			s := m.StringAt(int(v))
			if kind == op.Ident16 {
				notes = append(notes, s)
			} else {
				notes = append(notes, quote(s))
			}
		case op.Addr8, op.Addr32:
			notes = append(notes, fmt.Sprintf("-> %d", offset+int(v)))
		case op.Function16:
			if v >= int64(m.FunctionCount()) {
				return "", fmt.Errorf("function index out of range: %d", v)
			}
			notes = append(notes, "func:"+functionName(m, int(v)))
		case op.RegExp32:
			if v >= int64(m.RegExpCount()) {
				return "", fmt.Errorf("regexp index out of range: %d", v)
			}
			notes = append(notes, m.RegExpAt(int(v)).String())
		}
	}
	return strings.Join(notes, " "), nil
}

func decodeBuffer(m *bytecode.Module, buf []byte, offset int64, count int) ([]string, error) {
	values, err := literal.Decode(buf, uint32(offset), count)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.Literal(func(id uint32) string {
			if int(id) >= m.StringCount() {
				return fmt.Sprintf("<string %d>", id)
			}
			return m.StringAt(int(id))
		}).String()
	}
	return out, nil
}

func quote(s string) string {
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return fmt.Sprintf("%q", s)
}

func functionName(m *bytecode.Module, id int) string {
	nameID := int(m.FunctionAt(id).NameID())
	if nameID < m.StringCount() && m.StringAt(nameID) != "" {
		return m.StringAt(nameID)
	}
	return "<anonymous>"
}

// Print a string representation of the given instructions to the given writer.
func Print(instructions []Instruction, writer io.Writer) error {
	var lines [][]string
	for _, instr := range instructions {
		lines = append(lines, []string{
			fmt.Sprintf("%d", instr.Offset),
			bold(instr.Name),
			formatOperands(instr.Operands),
			colorize(instr),
		})
	}
	return table.NewTable(writer).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

func colorize(instr Instruction) string {
	a := instr.Annotation
	switch {
	case a == "":
		return ""
	case strings.HasPrefix(a, "func:"):
		return magenta(a)
	case strings.HasPrefix(a, `"`):
		return green(a)
	case strings.HasPrefix(a, "[") || strings.HasPrefix(a, "{"):
		return yellow(a)
	default:
		return cyan(a)
	}
}

func formatOperands(operands []int64) string {
	var sb strings.Builder
	for i, v := range operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%d", v))
	}
	return sb.String()
}

// PrintModule writes a summary of the module followed by the disassembly of
// every function.
func PrintModule(m *bytecode.Module, writer io.Writer) error {
	stats := m.Stats()
	fmt.Fprintf(writer, "%s %s\n", bold("module"), m.ID())
	fmt.Fprintf(writer, "entry point: %d, functions: %d, strings: %d (%d bytes), regexps: %d, literal bytes: %d\n",
		m.EntryPoint(), stats.FunctionCount, stats.StringCount, stats.StringStorageBytes,
		stats.RegExpCount, stats.LiteralBufferBytes)
	for i := 0; i < m.CJSModuleCount(); i++ {
		c := m.CJSModuleAt(i)
		fmt.Fprintf(writer, "cjs module %s -> function %d\n", quote(m.StringAt(int(c.NameID))), c.FunctionID)
	}
	for i := 0; i < m.StaticCJSModuleCount(); i++ {
		fmt.Fprintf(writer, "static cjs module %d -> function %d\n", m.CJSModuleOffset()+uint32(i), m.StaticCJSModuleAt(i))
	}
	for i := 0; i < m.FunctionCount(); i++ {
		if err := printFunction(m, i, writer); err != nil {
			return err
		}
	}
	return nil
}

func printFunction(m *bytecode.Module, id int, writer io.Writer) error {
	fn := m.FunctionAt(id)
	fmt.Fprintf(writer, "\n%s %d: %s (%s, params %d, frame %d, %d bytes)\n",
		bold("function"), id, functionName(m, id), fn.Kind(),
		fn.ParamCount(), fn.FrameSize(), fn.BytecodeSize())
	instructions, err := Disassemble(m, id)
	if err != nil {
		return err
	}
	if err := Print(instructions, writer); err != nil {
		return err
	}
	for i := 0; i < fn.ExceptionHandlerCount(); i++ {
		h := fn.ExceptionHandlerAt(i)
		fmt.Fprintf(writer, "handler [%d, %d) -> %d\n", h.Start, h.End, h.Target)
	}
	if fn.JumpTableSize() > 0 {
		entries := make([]string, fn.JumpTableSize())
		for i := range entries {
			entries[i] = fmt.Sprintf("%d", int32(fn.JumpTableAt(i)))
		}
		fmt.Fprintf(writer, "jump table: %s\n", strings.Join(entries, ", "))
	}
	return nil
}
