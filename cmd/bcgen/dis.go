package main

import (
	"fmt"

	"github.com/risor-io/bcgen/dis"
	"github.com/spf13/cobra"
)

var disCmd = &cobra.Command{
	Use:   "dis FILE",
	Short: "Disassemble a YAML program or a JSON module",
	Args:  cobra.ExactArgs(1),
	RunE:  runDis,
}

func init() {
	disCmd.Flags().Int("func", -1, "Disassemble only the function with this id")
}

func runDis(cmd *cobra.Command, args []string) error {
	m, err := loadModule(args[0], getGeneratorOptions())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fnIndex, _ := cmd.Flags().GetInt("func")
	if fnIndex < 0 {
		return dis.PrintModule(m, out)
	}
	if fnIndex >= m.FunctionCount() {
		return fmt.Errorf("function %d not found (module has %d functions)", fnIndex, m.FunctionCount())
	}
	instructions, err := dis.Disassemble(m, fnIndex)
	if err != nil {
		return err
	}
	return dis.Print(instructions, out)
}
