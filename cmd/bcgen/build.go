package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build FILE.yaml",
	Short: "Assemble a program into a JSON module",
	Long: `Assemble a YAML program, validate the generated module and write it
as JSON. The output defaults to the input path with a .json extension;
use "-o -" to write to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringP("output", "o", "", "Output file")
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts := getGeneratorOptions()
	m, err := loadModule(args[0], opts)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid module: %w", err)
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "-" {
		data, err := getOutputJSON(m, isTerminalIO())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if out == "" {
		out = outputPath(args[0])
	}
	if out, err = expandPath(out); err != nil {
		return err
	}
	data, err := getOutputJSON(m, false)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, append(data, '\n'), 0o644); err != nil {
		return err
	}
	stats := m.Stats()
	opts.Logger.Info().
		Str("output", out).
		Str("id", m.ID().String()).
		Int("functions", stats.FunctionCount).
		Int("bytecode_bytes", stats.BytecodeBytes).
		Int("string_bytes", stats.StringStorageBytes).
		Int("literal_bytes", stats.LiteralBufferBytes).
		Msg("wrote module")
	return nil
}
