// Command crushpayd runs the confession-link API: link creation and
// lookup, the free accept path, and on-chain verification of rejection
// payments across the registered chains.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/crushlink/crushpay"
	"github.com/crushlink/crushpay/logger"
	"github.com/crushlink/crushpay/metrics"
	"github.com/crushlink/crushpay/server"
	"github.com/crushlink/crushpay/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "crushpayd",
		Short: "Confession-link API with multi-chain rejection-fee verification",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(v)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":8080", "HTTP listen address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("postgres-dsn", "", "Postgres DSN; empty runs the in-memory store")
	flags.String("receiver", "", "override the payout address")
	flags.Uint64("confirmations", 2, "confirmation depth before verification")
	flags.Duration("verify-timeout", 30*time.Second, "bound on a single verification pass")
	flags.StringToString("rpc-override", nil, "chainID=url RPC overrides")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("CRUSHPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return cmd
}

func run(v *viper.Viper) error {
	log := logger.NewZapLogger(v.GetString("log-level"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	recorder := metrics.NewPrometheusRecorder(reg)

	opts := []crushpay.Option{
		crushpay.WithLogger(log),
		crushpay.WithMetrics(recorder),
	}

	if dsn := v.GetString("postgres-dsn"); dsn != "" {
		links, err := store.NewPostgresStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to open postgres store: %w", err)
		}
		opts = append(opts, crushpay.WithStore(links))
		log.Info("using postgres link store", nil)
	} else {
		log.Warn("no postgres DSN configured, links are in-memory only", nil)
	}

	overrides, err := parseRPCOverrides(v.GetStringMapString("rpc-override"))
	if err != nil {
		return err
	}

	core, err := crushpay.New(&crushpay.Config{
		ReceiverAddress: v.GetString("receiver"),
		Timeout:         v.GetDuration("verify-timeout"),
		Confirmations:   v.GetUint64("confirmations"),
		RPCOverrides:    overrides,
	}, opts...)
	if err != nil {
		return err
	}
	defer core.Close()

	if err := core.AddAllChains(); err != nil {
		// Partial chain coverage is survivable; the failure is already
		// logged per chain.
		log.Warn("not all chains attached", map[string]any{"error": err.Error()})
	}

	srv := server.NewServer(
		core.Links(),
		core.VerificationService(),
		server.WithLogger(log),
		server.WithMetricsRegistry(reg),
	)
	return srv.Run(v.GetString("listen"))
}

func parseRPCOverrides(raw map[string]string) (map[uint64]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	overrides := make(map[uint64]string, len(raw))
	for key, url := range raw {
		var chainID uint64
		if _, err := fmt.Sscanf(key, "%d", &chainID); err != nil {
			return nil, fmt.Errorf("invalid rpc-override chain ID %q", key)
		}
		overrides[chainID] = url
	}
	return overrides, nil
}
