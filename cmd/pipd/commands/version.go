package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/sunbird89629/pip-plugin/internal/platform"
	"github.com/sunbird89629/pip-plugin/internal/window"
)

// Version is set at build time with -ldflags "-X ...commands.Version=v1.2.3".
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pipd %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("platform: %s\n", platform.Version())
		fmt.Printf("backends: %v (default %s)\n", window.Available(), window.DefaultName())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
