package main

import (
	"context"
	"errors"
	"fmt"
	random "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dominant-strategies/tx-spammer/log"
	"github.com/dominant-strategies/tx-spammer/transfer"
	"github.com/dominant-strategies/tx-spammer/util"
)

const (
	FlagKeys      = "keys"
	FlagReceivers = "receivers"
	FlagSettings  = "settings"
	FlagVerbosity = "verbosity"
	FlagLogFile   = "log-file"
	FlagNoColor   = "no-color"
)

var errConnect = errors.New("failed to connect to rpc")

type options struct {
	keysPath      string
	receiversPath string
	settingsPath  string
	verbosity     string
	logFile       string
	noColor       bool
}

func main() {
	var opts options
	rootCmd := &cobra.Command{
		Use:   "spammer",
		Short: "Send one random native token transfer from every wallet",
		Long: `Send a small native token transfer from each private key in the keys file to a
random address from the receivers file. Values and delays are drawn from the ranges
in the settings file and at most "flows" transfers are active at once.

Example:
  spammer --keys private_keys.txt --receivers receivers.txt --settings settings.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := log.ConfigureLogger(log.LoggerConfig{
				Verbosity:  opts.verbosity,
				ShowColors: !opts.noColor,
				LogFile:    opts.logFile,
			})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, random.New(random.NewSource(time.Now().UnixNano())), lg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.keysPath, FlagKeys, "private_keys.txt", "File with one private key per line")
	flags.StringVar(&opts.receiversPath, FlagReceivers, "receivers.txt", "File with one recipient address per line")
	flags.StringVarP(&opts.settingsPath, FlagSettings, "f", "settings.json", "Path to the JSON settings file")
	flags.StringVar(&opts.verbosity, FlagVerbosity, "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFile, FlagLogFile, "", "Also write logs to this file, rotated by size")
	flags.BoolVar(&opts.noColor, FlagNoColor, false, "Disable colored output")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal("run failed", "error", err)
	}
}

// run loads the inputs, checks the node and sends every transfer. It returns
// after all transfers have finished; failed transfers are only logged.
func run(ctx context.Context, opts options, rand *random.Rand, lg *log.Logger) error {
	inputs, err := util.Load(opts.keysPath, opts.receiversPath, opts.settingsPath, rand, lg)
	if err != nil {
		return err
	}
	config := inputs.Config
	lg.Info("config loaded", "rpc", config.RPC, "proxy", config.Proxy != "", "flows", config.Flows, "chainId", transfer.ChainID)

	node, err := util.Dial(ctx, config.RPC, config.Proxy)
	if err != nil {
		return err
	}
	defer node.Close()

	probeCtx, cancel := ctx, context.CancelFunc(func() {})
	if config.RPCTimeout > 0 {
		probeCtx, cancel = context.WithTimeout(ctx, config.RPCTimeout)
	}
	chainID, err := node.Probe(probeCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w %s: %w", errConnect, config.RPC, err)
	}
	if chainID != transfer.ChainID {
		lg.Warn("node reports a different chain id", "node", chainID, "signing", transfer.ChainID)
	}

	intents, err := transfer.Plan(rand, inputs.Keys, inputs.Recipients, config)
	if err != nil {
		return err
	}

	submitter := transfer.NewSubmitter(node, config, lg)
	limiter := transfer.NewLimiter(config.Flows)
	transfer.NewOrchestrator(submitter, limiter, lg).Run(ctx, intents)
	lg.Info("all transfers finished", "count", len(intents), "flows", limiter.Size(), "peak", limiter.Peak())
	return nil
}
