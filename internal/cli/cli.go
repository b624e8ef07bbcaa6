// Package cli wires the cobra command tree, grounded on
// H0llyW00dzZ-pixcel's internal/cli layering: a root command that just
// carries metadata, with each subcommand registering itself via init().
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "animaframe",
	Short: "Play and inspect animated GIF/WebP images",
	Long: "animaframe plays animated GIF and WebP images through a bounded\n" +
		"frame cache and display-synchronous playback engine, and can\n" +
		"inspect a container's frame layout without rendering it.",
}

// Execute runs the root command, exiting the process with status 1 on
// any command error (matching the teacher's Execute).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
