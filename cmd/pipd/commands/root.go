package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "pipd",
		Short: "pipd - picture-in-picture overlay window for host applications",
		Long: `pipd opens a small always-on-top picture-in-picture window showing a
colored background and one line of text, and lets a host application drive it
over a websocket.

Features:
  • Single PiP window per process, created once and reused
  • Aspect-ratio constrained resizing
  • Close button hides the window and notifies the host
  • X11 and Win32 window backends, plus a headless one`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/pipd/config.yaml)")
	rootCmd.PersistentFlags().String("listen", "", "websocket listen address (default is 127.0.0.1:8765)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("listen_addr", rootCmd.PersistentFlags().Lookup("listen"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.SetEnvPrefix("pipd")
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
