package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var red = color.New(color.FgRed).SprintfFunc()

var rootCmd = &cobra.Command{
	Use:           "bcgen",
	Short:         "Assemble and inspect register bytecode modules",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		processGlobalFlags()
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default is $HOME/.bcgen.yaml)")
	pf.Bool("optimize", true, "Pack string storage and use compact literal encodings")
	pf.Bool("strip-debug", false, "Drop debug locations and variable names")
	pf.Bool("strip-names", false, "Replace function names with a placeholder")
	pf.BoolP("verbose", "v", false, "Log relocation and generation details")
	pf.Bool("no-color", false, "Disable colored output")
	for _, name := range []string{"config", "optimize", "strip-debug", "strip-names", "verbose", "no-color"} {
		viper.BindPFlag(name, pf.Lookup(name))
	}
	viper.SetEnvPrefix("bcgen")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(buildCmd, disCmd)
}

// initConfig reads the config file named by --config, or .bcgen.yaml in the
// home directory when present.
func initConfig() error {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return err
		}
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		return nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	viper.AddConfigPath(home)
	viper.SetConfigName(".bcgen")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}
