package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MotherSphere/GitSpace-sub000/internal/audit"
	"github.com/MotherSphere/GitSpace-sub000/internal/update"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Check for and install verified updates",
}

var updateCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the release feed for a newer version",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		channel := settings.Channel()
		if c, _ := cmd.Flags().GetString("channel"); c != "" {
			channel = update.Channel(c)
		}
		feed, _ := cmd.Flags().GetString("feed")
		if feed == "" {
			feed = settings.UpdateFeed
		}

		pipeline := update.New(settings.Policy(), feed, version, slog.Default())
		info, err := pipeline.Check(cmd.Context(), channel)
		printTrace(cmd, pipeline)
		if err != nil {
			return err
		}

		if info == nil {
			fmt.Println("Up to date")
			return nil
		}
		fmt.Printf("Update available: %s (%s)\n", info.Version, info.URL)
		for _, a := range info.Assets {
			how := "signature"
			if a.Checksum != "" {
				how = "sha256 " + a.Checksum
			}
			fmt.Printf("  %s  [%s]\n", a.Name, how)
		}
		return nil
	},
}

var updateInstallCmd = &cobra.Command{
	Use:   "install <destination>",
	Short: "Download, verify and install the offered release",
	Long:  "Checks the feed, then installs the first verified asset over the destination path. Any failure rolls back to the previous binary.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		dest := args[0]

		// Unwind any install a previous crash left half-finished.
		if restored, err := update.RecoverBackup(dest); err != nil {
			return err
		} else if restored {
			fmt.Fprintf(os.Stderr, "Restored %s from an interrupted install\n", dest)
		}

		feed, _ := cmd.Flags().GetString("feed")
		if feed == "" {
			feed = settings.UpdateFeed
		}
		pipeline := update.New(settings.Policy(), feed, version, slog.Default())

		info, err := pipeline.Check(cmd.Context(), settings.Channel())
		if err != nil {
			printTrace(cmd, pipeline)
			return err
		}
		if info == nil {
			printTrace(cmd, pipeline)
			fmt.Println("Up to date")
			return nil
		}

		err = pipeline.Install(cmd.Context(), info.Assets[0], dest)
		printTrace(cmd, pipeline)
		if dir, homeErr := gitspaceHome(); homeErr == nil {
			if auditLog := openAudit(dir); auditLog != nil {
				entry := audit.Entry{
					Action:  audit.ActionUpdateInstall,
					Version: info.Version,
					Actor:   "cli",
				}
				if err != nil {
					entry.Action = audit.ActionUpdateRollback
					entry.Error = err.Error()
				}
				auditLog.Log(entry)
				auditLog.Close()
			}
		}
		if err != nil {
			return err
		}
		fmt.Printf("Installed %s to %s\n", info.Version, dest)
		return nil
	},
}

func printTrace(cmd *cobra.Command, pipeline *update.Pipeline) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose {
		return
	}
	for _, line := range pipeline.Trace() {
		fmt.Fprintln(os.Stderr, line)
	}
}

func init() {
	updateCheckCmd.Flags().String("channel", "", "release channel (stable or preview)")
	updateCheckCmd.Flags().String("feed", "", "release feed URL override")
	updateCheckCmd.Flags().BoolP("verbose", "v", false, "print the pipeline state trace")
	updateInstallCmd.Flags().String("feed", "", "release feed URL override")
	updateInstallCmd.Flags().BoolP("verbose", "v", false, "print the pipeline state trace")

	updateCmd.AddCommand(updateCheckCmd)
	updateCmd.AddCommand(updateInstallCmd)
	rootCmd.AddCommand(updateCmd)
}
