package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a reader definition",
	Long: `Load the reader definition and check it.

Checks:
  - YAML syntax is valid
  - every file type has at least one usable file name pattern
  - geolocation keys are well formed
  - every dataset names a declared file type and a unique, valid name`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

const (
	checkMark = "ok"
	crossMark = "FAIL"
)

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(out, "  %s %s\n", crossMark, settings.GetString("config"))
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s %s\n", checkMark, settings.GetString("config"))
	fmt.Fprintf(out, "  %s reader: %s\n", checkMark, cfg.Reader.Name)
	for _, name := range cfg.FileTypeNames() {
		ft, _ := cfg.FileType(name)
		fmt.Fprintf(out, "  %s file type %s: %d pattern(s), reference %s\n",
			checkMark, name, len(ft.FilePatterns), ft.LatitudeKey)
	}
	fmt.Fprintf(out, "  %s datasets configured: %d\n", checkMark, len(cfg.Datasets))
	return nil
}
