package asm

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/risor-io/bcgen/bcgen"
	"github.com/risor-io/bcgen/bytecode"
	"github.com/risor-io/bcgen/internal/suggest"
	"github.com/risor-io/bcgen/literal"
	"github.com/risor-io/bcgen/op"
	"gopkg.in/yaml.v3"
)

// functionBuilder emits the code of one function.
type functionBuilder struct {
	a      *assembler
	def    *FunctionDef
	g      *bcgen.FunctionGenerator
	r      *bcgen.Relocator
	labels map[string]bcgen.Label

	// Highest inline cache indices seen, or -1.
	readCache  int
	writeCache int

	failed bool
}

func newFunctionBuilder(a *assembler, def *FunctionDef) *functionBuilder {
	g := bcgen.NewFunctionGenerator(a.m, def.Frame)
	return &functionBuilder{
		a:          a,
		def:        def,
		g:          g,
		r:          bcgen.NewRelocator(g),
		labels:     map[string]bcgen.Label{},
		readCache:  -1,
		writeCache: -1,
	}
}

func (b *functionBuilder) errorf(where, format string, args ...any) {
	b.failed = true
	b.a.errorf("function %s: %s: %s", b.def.Name, where, fmt.Sprintf(format, args...))
}

// label returns the label with the given name, creating it on first use.
// A leading @ is optional.
func (b *functionBuilder) label(name string) bcgen.Label {
	name = strings.TrimPrefix(name, "@")
	if l, ok := b.labels[name]; ok {
		return l
	}
	l := b.r.NewLabel()
	b.labels[name] = l
	return l
}

func (b *functionBuilder) item(where string, item *Item) {
	switch {
	case item.Label != "" && item.Op != "":
		b.errorf(where, "item has both a label and an op")
	case item.Label != "":
		l := b.label(item.Label)
		if b.r.IsBound(l) {
			b.errorf(where, "label %q defined more than once", item.Label)
			return
		}
		b.r.Bind(l)
	case item.Op != "":
		offset := uint32(b.g.Len())
		if b.instruction(where, item) && item.Line > 0 {
			b.g.AddDebugSourceLocation(bytecode.DebugLocation{
				Address:    offset,
				Line:       item.Line,
				Column:     item.Column,
				FilenameID: b.a.filename(),
			})
		}
	default:
		b.errorf(where, "item has neither a label nor an op")
	}
}

func (b *functionBuilder) handler(where string, h HandlerDef) {
	resolve := func(field, name string) (uint32, bool) {
		if name == "" {
			b.errorf(where, "missing %s label", field)
			return 0, false
		}
		l, ok := b.labels[strings.TrimPrefix(name, "@")]
		if !ok {
			b.errorf(where, "%s: unknown label %q", field, name)
			return 0, false
		}
		off, ok := b.r.Offset(l)
		if !ok {
			b.errorf(where, "%s: label %q is never bound", field, name)
		}
		return off, ok
	}
	start, ok1 := resolve("start", h.Start)
	end, ok2 := resolve("end", h.End)
	target, ok3 := resolve("target", h.Target)
	if !ok1 || !ok2 || !ok3 {
		return
	}
	if start > end {
		b.errorf(where, "start %q is after end %q", h.Start, h.End)
		return
	}
	b.g.AddExceptionHandler(bytecode.ExceptionHandler{Start: start, End: end, Target: target})
}

// instruction emits one instruction and reports whether it succeeded.
func (b *functionBuilder) instruction(where string, item *Item) bool {
	code, ok := op.Lookup(item.Op)
	if !ok {
		b.errorf(where, "unknown opcode %q%s", item.Op, suggest.Hint(item.Op, op.Names()))
		return false
	}
	where = where + " " + item.Op
	switch {
	case op.IsJump(code):
		return b.jump(where, code, item)
	case code == op.SwitchImm:
		return b.switchImm(where, item)
	case code == op.CreateRegExp:
		return b.createRegExp(where, item)
	case code == op.NewArrayWithBuffer:
		return b.newArray(where, item)
	case code == op.NewObjectWithBuffer:
		return b.newObject(where, item)
	}

	info := op.GetInfo(code)
	if code == op.LoadConstString {
		// Parse against the wide form and narrow when the id allows it.
		info = op.GetInfo(op.LoadConstStringLongIndex)
	}
	operands, ok := b.operands(where, info.Operands, item.Args)
	if !ok {
		return false
	}
	switch code {
	case op.LoadConstString:
		if operands[1] > math.MaxUint16 {
			code = op.LoadConstStringLongIndex
		}
	case op.GetById, op.TryGetById:
		b.readCache = max(b.readCache, int(operands[2]))
	case op.PutById:
		b.writeCache = max(b.writeCache, int(operands[2]))
	}
	b.g.Emit(code, operands...)
	return true
}

func (b *functionBuilder) jump(where string, code op.Code, item *Item) bool {
	if len(item.Args) == 0 {
		b.errorf(where, "missing jump target")
		return false
	}
	target := &item.Args[0]
	if target.ShortTag() != "!!str" || !strings.HasPrefix(target.Value, "@") {
		b.errorf(where, "line %d: jump target must be an @label", target.Line)
		return false
	}
	info := op.GetInfo(code)
	regs, ok := b.operands(where, info.Operands[1:], item.Args[1:])
	if !ok {
		return false
	}
	b.r.EmitJump(code, b.label(target.Value), regs...)
	return true
}

func (b *functionBuilder) switchImm(where string, item *Item) bool {
	sw := item.Switch
	if sw == nil || len(sw.Cases) == 0 || sw.Default == "" {
		b.errorf(where, "switch needs a default and at least one case")
		return false
	}
	if uint64(sw.Min)+uint64(len(sw.Cases))-1 > math.MaxUint32 {
		b.errorf(where, "case range overflows")
		return false
	}
	regs, ok := b.operands(where, []op.OperandKind{op.Reg8}, item.Args)
	if !ok {
		return false
	}
	cases := make([]bcgen.Label, len(sw.Cases))
	for i, c := range sw.Cases {
		cases[i] = b.label(c)
	}
	b.r.EmitSwitch(regs[0], sw.Min, b.label(sw.Default), cases)
	return true
}

func (b *functionBuilder) createRegExp(where string, item *Item) bool {
	if len(item.Args) != 2 {
		b.errorf(where, "expected a register and a regexp literal")
		return false
	}
	regs, ok := b.operands(where, []op.OperandKind{op.Reg8}, item.Args[:1])
	if !ok {
		return false
	}
	lit := &item.Args[1]
	re, err := bytecode.ParseRegExpLiteral(lit.Value)
	if err != nil {
		b.errorf(where, "line %d: %v", lit.Line, err)
		return false
	}
	b.g.Emit(op.CreateRegExp,
		regs[0],
		int64(b.g.AddConstantString(re.Pattern, false)),
		int64(b.g.AddConstantString(re.Flags, false)),
		int64(b.g.AddRegExp(re)),
	)
	return true
}

// bufferArgs parses the register and optional size hint of a buffer
// instruction.
func (b *functionBuilder) bufferArgs(where string, item *Item, count int) (reg, hint int64, ok bool) {
	if count > math.MaxUint16 {
		b.errorf(where, "too many elements: %d", count)
		return 0, 0, false
	}
	switch len(item.Args) {
	case 1:
		regs, ok := b.operands(where, []op.OperandKind{op.Reg8}, item.Args)
		if !ok {
			return 0, 0, false
		}
		return regs[0], int64(count), true
	case 2:
		vals, ok := b.operands(where, []op.OperandKind{op.Reg8, op.UInt16}, item.Args)
		if !ok {
			return 0, 0, false
		}
		return vals[0], vals[1], true
	default:
		b.errorf(where, "expected a register and an optional size hint")
		return 0, 0, false
	}
}

func (b *functionBuilder) newArray(where string, item *Item) bool {
	elems := make([]literal.Literal, len(item.Array))
	for i := range item.Array {
		lit, err := parseLiteral(&item.Array[i])
		if err != nil {
			b.errorf(where, "array[%d]: %v", i, err)
			return false
		}
		elems[i] = lit
	}
	reg, hint, ok := b.bufferArgs(where, item, len(elems))
	if !ok {
		return false
	}
	offset := b.a.m.AddArrayBuffer(elems)
	b.g.Emit(op.NewArrayWithBuffer, reg, hint, int64(len(elems)), int64(offset))
	return true
}

func (b *functionBuilder) newObject(where string, item *Item) bool {
	obj := &item.Object
	if obj.Kind != yaml.MappingNode {
		b.errorf(where, "object must be a mapping")
		return false
	}
	var keys, vals []literal.Literal
	for i := 0; i+1 < len(obj.Content); i += 2 {
		k, v := obj.Content[i], obj.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			b.errorf(where, "line %d: object keys must be scalars", k.Line)
			return false
		}
		lit, err := parseLiteral(v)
		if err != nil {
			b.errorf(where, "key %q: %v", k.Value, err)
			return false
		}
		keys = append(keys, literal.String(k.Value))
		vals = append(vals, lit)
	}
	reg, hint, ok := b.bufferArgs(where, item, len(keys))
	if !ok {
		return false
	}
	keyOffset, valOffset := b.a.m.AddObjectBuffer(keys, vals)
	b.g.Emit(op.NewObjectWithBuffer, reg, hint, int64(len(keys)), int64(keyOffset), int64(valOffset))
	return true
}

// operands converts YAML arguments into encoded operand values.
func (b *functionBuilder) operands(where string, kinds []op.OperandKind, args []yaml.Node) ([]int64, bool) {
	if len(args) != len(kinds) {
		b.errorf(where, "expected %d operands, got %d", len(kinds), len(args))
		return nil, false
	}
	values := make([]int64, len(args))
	ok := true
	for i, kind := range kinds {
		v, err := b.operand(kind, &args[i])
		if err == nil && !kind.Fits(v) {
			err = fmt.Errorf("%d does not fit %s", v, kind)
		}
		if err != nil {
			b.errorf(where, "line %d: operand %d: %v", args[i].Line, i, err)
			ok = false
			continue
		}
		values[i] = v
	}
	return values, ok
}

func (b *functionBuilder) operand(kind op.OperandKind, n *yaml.Node) (int64, error) {
	switch kind {
	case op.Reg8:
		reg, err := parseRegister(n)
		if err != nil {
			return 0, err
		}
		if reg >= int64(b.def.Frame) {
			return 0, fmt.Errorf("register r%d outside frame of %d", reg, b.def.Frame)
		}
		return reg, nil
	case op.UInt8, op.UInt16, op.UInt32, op.Imm32, op.Cache8:
		var v int64
		if n.ShortTag() != "!!int" || n.Decode(&v) != nil {
			return 0, fmt.Errorf("expected an integer, got %q", n.Value)
		}
		return v, nil
	case op.String16, op.String32, op.Ident16:
		if n.ShortTag() != "!!str" {
			return 0, fmt.Errorf("expected a string, got %q", n.Value)
		}
		return int64(b.g.AddConstantString(n.Value, kind == op.Ident16)), nil
	case op.Function16:
		fn, ok := b.a.funcs[n.Value]
		if !ok {
			return 0, errors.New(b.a.unknownFunction(n.Value))
		}
		return int64(b.g.GetFunctionID(fn)), nil
	default:
		return 0, fmt.Errorf("%s operands cannot be given directly", kind)
	}
}

// parseRegister accepts rN or a plain integer.
func parseRegister(n *yaml.Node) (int64, error) {
	s := n.Value
	if n.ShortTag() == "!!str" {
		if !strings.HasPrefix(s, "r") {
			return 0, fmt.Errorf("expected a register, got %q", s)
		}
		s = s[1:]
	} else if n.ShortTag() != "!!int" {
		return 0, fmt.Errorf("expected a register, got %q", s)
	}
	reg, err := strconv.ParseInt(s, 10, 64)
	if err != nil || reg < 0 {
		return 0, fmt.Errorf("invalid register %q", n.Value)
	}
	return reg, nil
}

// parseLiteral converts a YAML scalar into a literal buffer value.
func parseLiteral(n *yaml.Node) (literal.Literal, error) {
	if n.Kind != yaml.ScalarNode {
		return literal.Literal{}, fmt.Errorf("line %d: literals must be scalars", n.Line)
	}
	switch n.ShortTag() {
	case "!!null":
		return literal.Null(), nil
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return literal.Literal{}, err
		}
		return literal.Bool(v), nil
	case "!!int", "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			return literal.Literal{}, err
		}
		return literal.Number(v), nil
	case "!!str":
		return literal.String(n.Value), nil
	default:
		return literal.Literal{}, fmt.Errorf("line %d: unsupported literal %q", n.Line, n.Value)
	}
}
