//go:build darwin

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run gpuprobe serve as a LaunchAgent (starts on login)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if printOnly, _ := cmd.Flags().GetBool("print"); printOnly {
			return printPlist()
		}

		agent, err := newLaunchAgent()
		if err != nil {
			return err
		}
		data, err := agent.plist()
		if err != nil {
			return err
		}
		path, err := agent.plistPath()
		if err != nil {
			return err
		}

		for _, dir := range []string{filepath.Dir(path), filepath.Dir(agent.LogPath)} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing plist: %w", err)
		}

		// Replace a previously loaded job so reinstalling picks up a new binary.
		_ = launchctl("bootout", guiDomain()+"/"+agent.Label)
		if err := launchctl("bootstrap", guiDomain(), path); err != nil {
			return err
		}

		fmt.Printf("Installed %s\n", path)
		fmt.Printf("Serving on %s\n", defaultSocketPath())
		fmt.Printf("Logs: %s\n", agent.LogPath)
		return nil
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the gpuprobe LaunchAgent",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent := launchAgent{Label: launchAgentLabel}
		path, err := agent.plistPath()
		if err != nil {
			return err
		}

		// Not loaded is fine.
		_ = launchctl("bootout", guiDomain()+"/"+agent.Label)

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing plist: %w", err)
		}
		fmt.Printf("Removed %s\n", path)
		return nil
	},
}

func guiDomain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

func launchctl(args ...string) error {
	out, err := exec.Command("launchctl", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("launchctl %s: %w: %s", args[0], err, out)
	}
	return nil
}

func init() {
	installCmd.Flags().Bool("print", false, "print the LaunchAgent plist instead of installing it")
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}
