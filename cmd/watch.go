package cmd

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusdocs/ingestcore/internal/resync"
)

var watchSettleMs int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the document root and resync a folder whenever it changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cfg)
		if err != nil {
			return err
		}
		defer d.bridge.Close()

		engine := resync.NewEngine(d.store, d.cache, nil, resync.EngineConfig{
			DocRoot:          filepath.Join(cfg.StorageDir, "documents"),
			BatchSize:        cfg.BatchSize,
			SmallConcurrency: cfg.ResyncConcurrency,
			LargeConcurrency: cfg.ResyncLargeConcurrency,
			SlowMs:           cfg.ResyncSlowMs,
		}, nil)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return engine.Watch(ctx, time.Duration(watchSettleMs)*time.Millisecond)
	},
}

func init() {
	watchCmd.Flags().IntVar(&watchSettleMs, "settle", 500, "milliseconds to wait for a folder to go quiet before rescanning")
	rootCmd.AddCommand(watchCmd)
}
