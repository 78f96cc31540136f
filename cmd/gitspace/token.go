package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage per-host access tokens",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <host> [token]",
	Short: "Store an access token for a remote host",
	Long:  "Store a token. If the token is omitted, reads from stdin (useful for piping).",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		v, err := openVault(settings)
		if err != nil {
			return err
		}
		host := args[0]

		var token string
		if len(args) == 2 {
			token = args[1]
		} else {
			if term.IsTerminal(int(os.Stdin.Fd())) {
				fmt.Print("Enter token: ")
				b, err := term.ReadPassword(int(os.Stdin.Fd()))
				if err != nil {
					return fmt.Errorf("reading token: %w", err)
				}
				fmt.Println()
				token = string(b)
			} else {
				b, err := os.ReadFile("/dev/stdin")
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				token = strings.TrimRight(string(b), "\n")
			}
		}

		validate, _ := cmd.Flags().GetBool("validate")
		if validate {
			if err := v.ValidateAndStore(cmd.Context(), host, token, settings.Policy()); err != nil {
				return err
			}
		} else {
			if err := v.Set(host, token); err != nil {
				return err
			}
		}
		fmt.Printf("Token for %q stored\n", host)
		return nil
	},
}

var tokenGetCmd = &cobra.Command{
	Use:   "get <host>",
	Short: "Retrieve the token for a host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		v, err := openVault(settings)
		if err != nil {
			return err
		}
		token, err := v.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List hosts with stored tokens",
	Aliases: []string{"ls", "hosts"},
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		v, err := openVault(settings)
		if err != nil {
			return err
		}
		hosts, err := v.KnownHosts()
		if err != nil {
			return err
		}

		if len(hosts) == 0 {
			fmt.Println("No tokens stored")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "HOST")
		for _, h := range hosts {
			fmt.Fprintln(w, h)
		}
		w.Flush()
		return nil
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:     "delete <host>",
	Short:   "Remove the token for a host",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		v, err := openVault(settings)
		if err != nil {
			return err
		}
		if err := v.Clear(args[0]); err != nil {
			return err
		}
		fmt.Printf("Token for %q removed\n", args[0])
		return nil
	},
}

func init() {
	tokenSetCmd.Flags().Bool("validate", false, "probe the provider's API with the token before storing")

	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenGetCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenDeleteCmd)
	rootCmd.AddCommand(tokenCmd)
}
