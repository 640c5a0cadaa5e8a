package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set through -ldflags "-X .../cmd.Version=..." at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version number, git commit, build date, and Go runtime version.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintln(out, "Events API Server"); err != nil {
			return err
		}
		for _, field := range versionFields() {
			if _, err := fmt.Fprintf(out, "%-11s %s\n", field[0]+":", field[1]); err != nil {
				return err
			}
		}
		return nil
	},
}

func versionFields() [][2]string {
	return [][2]string{
		{"Version", Version},
		{"Git commit", GitCommit},
		{"Build date", BuildDate},
		{"Go version", runtime.Version()},
		{"Platform", runtime.GOOS + "/" + runtime.GOARCH},
	}
}
