package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/hokaccha/go-prettyjson"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/go-homedir"
	"github.com/risor-io/bcgen/asm"
	"github.com/risor-io/bcgen/bcgen"
	"github.com/risor-io/bcgen/bytecode"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

func fatal(msg interface{}) {
	var s string
	switch msg := msg.(type) {
	case string:
		s = msg
	case error:
		s = msg.Error()
	default:
		s = fmt.Sprintf("%v", msg)
	}
	fmt.Fprintf(os.Stderr, "%s\n", red(s))
	os.Exit(1)
}

func isTerminalIO() bool {
	stdout := os.Stdout.Fd()
	return isatty.IsTerminal(stdout) || isatty.IsCygwinTerminal(stdout)
}

// Reads global flags from Viper and adjusts the environment accordingly.
func processGlobalFlags() {
	if viper.GetBool("no-color") || !isTerminalIO() {
		color.NoColor = true
	}
}

func getLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if viper.GetBool("verbose") {
		level = zerolog.DebugLevel
	}
	w := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: color.NoColor}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func getGeneratorOptions() bcgen.Options {
	opts := bcgen.DefaultOptions()
	opts.OptimizationEnabled = viper.GetBool("optimize")
	opts.StripDebugInfo = viper.GetBool("strip-debug")
	opts.StripFunctionNames = viper.GetBool("strip-names")
	opts.Logger = getLogger()
	return opts
}

func expandPath(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", path, err)
	}
	return expanded, nil
}

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// loadModule assembles a YAML program or loads a module previously written
// by the build command, depending on the file extension.
func loadModule(path string, opts bcgen.Options) (*bytecode.Module, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	if isJSONPath(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return bytecode.Unmarshal(data)
	}
	program, err := asm.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return asm.Assemble(program, opts)
}

// getOutputJSON renders the module as indented JSON, colorized when the
// output is a terminal and colors are enabled.
func getOutputJSON(m *bytecode.Module, colorize bool) ([]byte, error) {
	data, err := bytecode.Marshal(m)
	if err != nil {
		return nil, err
	}
	if colorize && !viper.GetBool("no-color") {
		return prettyjson.Format(data)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

// outputPath derives the default output file for the build command.
func outputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".json"
}
