package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/kjourdan1/azaudit/internal/inventory"
	"github.com/kjourdan1/azaudit/internal/output"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// buildInfo is the payload of `azaudit version --json`.
type buildInfo struct {
	Version      string `json:"version"`
	Commit       string `json:"commit"`
	BuildDate    string `json:"buildDate"`
	GoVersion    string `json:"goVersion"`
	Platform     string `json:"platform"`
	ReportSchema string `json:"reportSchema"`
}

func currentBuild() buildInfo {
	return buildInfo{
		Version:      Version,
		Commit:       Commit,
		BuildDate:    BuildDate,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		ReportSchema: inventory.SchemaVersion,
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print azaudit version and report schema",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		initOutput(cmd)
		info := currentBuild()
		if jsonOutput {
			output.JSON(info)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "azaudit version %s (commit: %s, built: %s, %s)\n", info.Version, info.Commit, info.BuildDate, info.Platform)
		fmt.Fprintf(cmd.OutOrStdout(), "report schema %s\n", info.ReportSchema)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
