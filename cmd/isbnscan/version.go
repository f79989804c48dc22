package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/isbnscan/internal/output"
	"github.com/jackzampolin/isbnscan/version"
)

type versionInfo struct {
	Release string `json:"release" yaml:"release"`
	Go      string `json:"go" yaml:"go"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Release: version.GitRelease,
			Go:      version.GoInfo,
			Commit:  version.GitCommit,
			Date:    version.GitCommitDate,
		}
		if output.IsStructured() {
			return output.Print(info)
		}
		fmt.Printf("isbnscan %s\n", info.Release)
		fmt.Printf("  Go:     %s\n", info.Go)
		fmt.Printf("  Commit: %s\n", info.Commit)
		fmt.Printf("  Date:   %s\n", info.Date)
		return nil
	},
}
