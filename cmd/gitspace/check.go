package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MotherSphere/GitSpace-sub000/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check [config-file]",
	Short: "Validate the settings file",
	Long:  "Parse and validate the YAML settings. Checks a specific file or the default location.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultPath()
		if len(args) > 0 {
			path = args[0]
		}

		settings, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("FAIL  %s: %w", path, err)
		}

		fmt.Printf("OK    %s\n", path)
		fmt.Printf("      use_https=%v allow_ssh=%v fallback=%v channel=%s\n",
			settings.UseHTTPS, settings.AllowSSH, settings.AllowEncryptedFallback, settings.UpdateChannel)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
