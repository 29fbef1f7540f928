package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"

	"github.com/dotcommander/cosmos-agent/internal/config"
	"github.com/dotcommander/cosmos-agent/internal/errs"
	"github.com/dotcommander/cosmos-agent/internal/present"
	"github.com/dotcommander/cosmos-agent/internal/storage/cache"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Allow opening settings even when config parsing failed.
			return editSettings(&rt.cfg, cmd.ErrOrStderr())
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open settings in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return editSettings(&rt.cfg, cmd.ErrOrStderr())
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset settings to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Allow reset even when config parsing failed.
			return resetSettings(&rt.cfg, cmd.ErrOrStderr())
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:       "dirs [config|cache|agents|transcripts]",
		Short:     "Print config and cache directories",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"config", "cache", "agents", "transcripts"},
		RunE: func(cmd *cobra.Command, args []string) error {
			printDirs(cmd.OutOrStdout(), &rt.cfg, args)
			return nil
		},
	})

	return configCmd
}

func editSettings(cfg *config.Config, w io.Writer) error {
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	c, err := editor.Cmd("cosmos-agent", cfg.SettingsPath)
	if err != nil {
		return errs.Wrap(err, "Could not edit your settings file.")
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return errs.Wrapf(err, "Missing %s.", present.StderrStyles().InlineCode.Render("$EDITOR"))
	}

	if !cfg.Quiet {
		fmt.Fprintln(w, "Wrote config file to:", cfg.SettingsPath)
	}
	return nil
}

func resetSettings(cfg *config.Config, w io.Writer) error {
	backup := cfg.SettingsPath + ".bak"
	content, err := os.ReadFile(cfg.SettingsPath)
	if err != nil {
		return errs.Wrap(err, "Couldn't read config file.")
	}
	if err := os.WriteFile(backup, content, 0o600); err != nil {
		return errs.Wrap(err, "Couldn't backup config file.")
	}
	if err := os.Remove(cfg.SettingsPath); err != nil {
		return errs.Wrap(err, "Couldn't remove config file.")
	}
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return errs.Wrap(err, "Couldn't write new config file.")
	}

	if !cfg.Quiet {
		styles := present.StderrStyles()
		fmt.Fprintln(w, "\nSettings restored to defaults!")
		fmt.Fprintf(
			w,
			"\n  %s %s\n\n",
			styles.Comment.Render("Your old settings have been saved to:"),
			styles.Link.Render(backup),
		)
	}
	return nil
}

func printDirs(w io.Writer, cfg *config.Config, args []string) {
	dirs := []struct{ name, label, path string }{
		{"config", "Configuration", filepath.Dir(cfg.SettingsPath)},
		{"cache", "Cache", cfg.CachePath},
		{"agents", "Agents", filepath.Join(cfg.CachePath, ledgerDir)},
		{"transcripts", "Transcripts", filepath.Join(cfg.CachePath, string(cache.TranscriptCache))},
	}
	for _, d := range dirs {
		if len(args) > 0 {
			if args[0] == d.name {
				fmt.Fprintln(w, d.path)
			}
			continue
		}
		fmt.Fprintf(w, "%14s: %s\n", d.label, d.path)
	}
}
