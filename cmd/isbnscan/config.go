package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/isbnscan/internal/config"
	"github.com/jackzampolin/isbnscan/internal/home"
	"github.com/jackzampolin/isbnscan/internal/output"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage isbnscan configuration",
	Long: `Manage the isbnscan configuration file.

The config file lives at ~/.isbnscan/config.yaml unless --config or --home
is given. Every key can also be set with an ISBNSCAN_ environment variable,
e.g. ISBNSCAN_OCR_MODE=on or ISBNSCAN_BATCH_WORKERS=4.

Examples:
  isbnscan config init          # Write the default config file
  isbnscan config show          # Print the effective configuration
  isbnscan config keys          # List every key with its default
  isbnscan config get ocr.mode  # Print one effective value`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			h, err := home.New(homeDir)
			if err != nil {
				return err
			}
			if err := h.EnsureExists(); err != nil {
				return err
			}
			path = h.ConfigPath()
		}

		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		if !output.IsStructured() {
			return output.To(os.Stdout, output.FormatYAML, a.cfg.Get())
		}
		return output.Print(a.cfg.Get())
	},
}

type entries []config.Entry

func (e entries) WriteText(w io.Writer) error {
	for _, entry := range e {
		if _, err := fmt.Fprintf(w, "%-34s %-12v %s\n", entry.Key, entry.Value, entry.Description); err != nil {
			return err
		}
	}
	return nil
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys with their defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.Print(entries(config.DefaultEntries()))
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the effective value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		v, err := a.cfg.Value(args[0])
		if err != nil {
			return err
		}
		return output.Print(v)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd, configShowCmd, configKeysCmd, configGetCmd)
}
