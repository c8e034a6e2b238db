package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sunbird89629/pip-plugin/internal/config"
	"github.com/sunbird89629/pip-plugin/internal/rpc"
)

var callCmd = &cobra.Command{
	Use:   "call METHOD [JSON-ARGS]",
	Short: "Invoke a method on a running daemon",
	Long: `Connect to a running pipd as a host and invoke one method.

The result is printed as JSON. With --wait the connection stays open and
notifications such as pipStopped are printed as they arrive.

Methods: ` + strings.Join(rpc.Methods(), ", "),
	Example: `  # Create the window with a 4:3 ratio and show it
  pipd call setupPip '{"text":"Live","ratio":[4,3]}'
  pipd call startPip

  # Change the caption
  pipd call updateText '{"text":"Back in 5"}'

  # Show it and watch for the user closing it
  pipd call startPip --wait 1m`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

var (
	callWait    time.Duration
	callTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().DurationVar(&callWait, "wait", 0, "keep printing notifications for this long after the call")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 10*time.Second, "time to wait for the response")
}

func runCall(cmd *cobra.Command, args []string) error {
	method := args[0]

	var callArgs any
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &callArgs); err != nil {
			return fmt.Errorf("invalid JSON arguments: %w", err)
		}
	}

	addr := viper.GetString("listen_addr")
	if addr == "" {
		configMgr, err := config.NewManager(GetConfigFile())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		addr = configMgr.Get().ListenAddr
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	client, err := rpc.Dial(ctx, "ws://"+addr+"/ws")
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Call(ctx, method, callArgs)
	if err != nil {
		var rpcErr *rpc.Error
		if errors.As(err, &rpcErr) {
			return fmt.Errorf("%s failed: %w", method, rpcErr)
		}
		return err
	}
	fmt.Fprintln(os.Stdout, string(result))

	if callWait <= 0 {
		return nil
	}

	timer := time.NewTimer(callWait)
	defer timer.Stop()
	for {
		select {
		case n, ok := <-client.Notifications():
			if !ok {
				return nil
			}
			payload, _ := json.Marshal(n.Args)
			fmt.Fprintf(os.Stdout, "%s %s\n", n.Method, payload)
		case <-timer.C:
			return nil
		case <-cmd.Context().Done():
			return nil
		}
	}
}
