package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"verge/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "verge",
	Short: "Permission and accessibility analyzer for procedure dumps",
	Long:  `Verge replays permission transfers and computes per-point accessibility for procedures encoded in dump files`,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Int("jobs", 0, "parallel workers (0 = one per CPU)")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics per procedure")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether the file is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func configureColor(mode string) {
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}
