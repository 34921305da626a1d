package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/agentmetrics/internal/profile"
	"github.com/hrygo/agentmetrics/metrics"
	"github.com/hrygo/agentmetrics/server"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "agentmetrics",
	Short: "Hourly aggregation and persistence of AI agent metrics",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:            viper.GetString("mode"),
			Addr:            viper.GetString("addr"),
			Port:            viper.GetInt("port"),
			FlushInterval:   viper.GetDuration("flush-interval"),
			RetentionPeriod: viper.GetDuration("retention-period"),
			CleanupInterval: viper.GetDuration("cleanup-interval"),
			TracingEnabled:  viper.GetBool("tracing"),
			Version:         version,
		}
		if err := instanceProfile.FromEnv(); err != nil {
			return err
		}
		if err := instanceProfile.Validate(); err != nil {
			return err
		}

		setupLogger(instanceProfile)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Snapshots survive only as long as the process; plug in a durable
		// MetricsStore implementation here for real deployments.
		s := server.NewServer(instanceProfile, metrics.NewMemoryStore())
		return s.Start(ctx)
	},
}

func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server, can be "dev" or "prod"`)
	rootCmd.PersistentFlags().String("addr", "", "binding address for the server")
	rootCmd.PersistentFlags().Int("port", 8081, "binding port for the server")
	rootCmd.PersistentFlags().Duration("flush-interval", 0, "how often completed hour buckets are persisted (default 1h)")
	rootCmd.PersistentFlags().Duration("retention-period", 0, "how long persisted metrics are kept (default 720h)")
	rootCmd.PersistentFlags().Duration("cleanup-interval", 0, "how often the retention sweep runs (default 24h)")
	rootCmd.PersistentFlags().Bool("tracing", false, "enable debug span logging")

	for _, flag := range []string{"mode", "addr", "port", "flush-interval", "retention-period", "cleanup-interval", "tracing"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("agentmetrics")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
