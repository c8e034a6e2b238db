package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sunbird89629/pip-plugin/internal/config"
	"github.com/sunbird89629/pip-plugin/internal/logger"
	"github.com/sunbird89629/pip-plugin/internal/plugin"
	"github.com/sunbird89629/pip-plugin/internal/window"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PiP daemon",
	Long: `Start the PiP daemon and wait for a host application on the websocket
endpoint /ws.

The PiP window is only created when the host calls setupPip.`,
	Example: `  # Start on the default address (127.0.0.1:8765)
  pipd serve

  # Start on another address with debug logging
  pipd serve --listen 127.0.0.1:9000 --log-level debug

  # Run headless and keep the last frame as a PNG
  pipd serve --backend memory --snapshot /tmp/pip.png`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("backend", "", "window backend: auto, x11, win32 or memory")
	serveCmd.Flags().String("snapshot", "", "write the last frame to this PNG file on shutdown")
	serveCmd.Flags().Bool("pretty", false, "human-readable console logs")

	viper.BindPFlag("backend", serveCmd.Flags().Lookup("backend"))
	viper.BindPFlag("snapshot", serveCmd.Flags().Lookup("snapshot"))
	viper.BindPFlag("log_pretty", serveCmd.Flags().Lookup("pretty"))
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Flags and PIPD_* environment variables override the file for this run
	configMgr.Override(
		viper.GetString("listen_addr"),
		viper.GetString("log_level"),
		viper.GetString("backend"),
	)
	cfg := configMgr.Get()

	logger.Init(cfg.LogLevel, cfg.LogPretty || viper.GetBool("log_pretty"))
	log := logger.WithComponent("serve")
	log.Info().
		Str("config", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	levelFromFlag := viper.IsSet("log_level") && viper.GetString("log_level") != ""
	if err := configMgr.Watch(ctx, func(c *config.Config) {
		if !levelFromFlag {
			logger.SetLevel(c.LogLevel)
		}
	}); err != nil {
		log.Warn().Err(err).Msg("Config changes will not be picked up")
	}

	backend, err := window.Open(cfg.Backend)
	if err != nil {
		return fmt.Errorf("failed to open window backend: %w", err)
	}

	p, err := plugin.New(backend, plugin.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		SnapshotPath:   viper.GetString("snapshot"),
	})
	if err != nil {
		backend.Close()
		return fmt.Errorf("failed to initialize plugin: %w", err)
	}

	log.Info().
		Str("backend", backend.Name()).
		Str("ws", "ws://"+cfg.ListenAddr+"/ws").
		Msg("pipd is running, press Ctrl+C to stop")

	if err := p.Run(ctx, cfg.ListenAddr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shut down gracefully")
	return nil
}
