//go:build !darwin

package main

import (
	"errors"

	"github.com/spf13/cobra"
)

var errNoLaunchd = errors.New("LaunchAgents are only available on macOS; use `gpuprobe install --print` to generate the plist")

// Only --print works here, so a plist can be generated for another machine.
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run gpuprobe serve as a LaunchAgent (macOS only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
			return printPlist()
		}
		return errNoLaunchd
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the gpuprobe LaunchAgent (macOS only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return errNoLaunchd
	},
}

func init() {
	installCmd.Flags().Bool("print", false, "print the LaunchAgent plist instead of installing it")
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}
