package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Version is set during build
	Version = "0.1.0-dev"

	rootCmd = &cobra.Command{
		Use:   "btrelay",
		Short: "btrelay - Bluetooth to USB HID relay",
		Long: `btrelay forwards input events from Bluetooth (or any evdev) keyboards,
mice and remotes to a USB gadget-mode HID endpoint, so a small board
plugged into a host machine presents those devices as native USB
peripherals.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
}
