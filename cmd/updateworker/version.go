package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is overridden at link time via -ldflags.
var buildVersion = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the updateworker version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("updateworker", buildVersion)
	},
}
