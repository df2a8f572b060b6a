// Package asm assembles a YAML description of functions and their
// instructions into a bytecode module. It drives the generators in package
// bcgen the way a compiler back end would.
package asm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Program is the top level of an assembly file.
type Program struct {
	// Filename is recorded in debug locations.
	Filename string `yaml:"filename"`
	// Entry names the function run when the module loads. Defaults to the
	// first function.
	Entry         string        `yaml:"entry"`
	Functions     []FunctionDef `yaml:"functions"`
	Modules       []ModuleDef   `yaml:"modules"`
	StaticModules []string      `yaml:"static_modules"`
}

// FunctionDef describes one function.
type FunctionDef struct {
	Name      string       `yaml:"name"`
	Kind      string       `yaml:"kind"`
	Strict    bool         `yaml:"strict"`
	Frame     uint32       `yaml:"frame"`
	Params    uint32       `yaml:"params"`
	Env       uint32       `yaml:"env"`
	Parent    string       `yaml:"parent"`
	Lazy      bool         `yaml:"lazy"`
	Variables []string     `yaml:"variables"`
	Line      uint32       `yaml:"line"`
	Column    uint32       `yaml:"column"`
	Code      []Item       `yaml:"code"`
	Handlers  []HandlerDef `yaml:"handlers"`
}

// Item is either a label or an instruction.
type Item struct {
	Label  string      `yaml:"label"`
	Op     string      `yaml:"op"`
	Args   []yaml.Node `yaml:"args"`
	Line   uint32      `yaml:"line"`
	Column uint32      `yaml:"column"`
	// Array holds the elements of a NewArrayWithBuffer.
	Array []yaml.Node `yaml:"array"`
	// Object holds the key/value mapping of a NewObjectWithBuffer, in
	// source order.
	Object yaml.Node `yaml:"object"`
	// Switch holds the targets of a SwitchImm.
	Switch *SwitchDef `yaml:"switch"`
}

// SwitchDef lists the targets of a SwitchImm. Case i handles the value
// Min+i.
type SwitchDef struct {
	Min     uint32   `yaml:"min"`
	Default string   `yaml:"default"`
	Cases   []string `yaml:"cases"`
}

// HandlerDef is an exception handler given by labels. Handlers must be
// listed innermost first.
type HandlerDef struct {
	Start  string `yaml:"start"`
	End    string `yaml:"end"`
	Target string `yaml:"target"`
}

// ModuleDef links a CommonJS module name to the function implementing it.
type ModuleDef struct {
	Function string `yaml:"function"`
	Filename string `yaml:"filename"`
}

// Parse decodes an assembly program.
func Parse(data []byte) (*Program, error) {
	var p Program
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if len(p.Functions) == 0 {
		return nil, fmt.Errorf("parse error: program has no functions")
	}
	return &p, nil
}

// ParseFile reads and decodes an assembly program from disk.
func ParseFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Filename == "" {
		p.Filename = path
	}
	return p, nil
}
