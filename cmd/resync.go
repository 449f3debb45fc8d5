package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nimbusdocs/ingestcore/internal/resync"
)

var (
	resyncFolders []string
	resyncForce   bool
)

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Refresh the per-folder metadata index from the document root",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cfg)
		if err != nil {
			return err
		}
		defer d.bridge.Close()

		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("resync: scanning"),
			progressbar.OptionShowCount(),
			progressbar.OptionSpinnerType(14),
		)

		engine := resync.NewEngine(d.store, d.cache, nil, resync.EngineConfig{
			DocRoot:          filepath.Join(cfg.StorageDir, "documents"),
			BatchSize:        cfg.BatchSize,
			SmallConcurrency: cfg.ResyncConcurrency,
			LargeConcurrency: cfg.ResyncLargeConcurrency,
			SlowMs:           cfg.ResyncSlowMs,
		}, func(evt resync.BatchEvent) {
			bar.Describe(fmt.Sprintf("resync: %s", evt.Folder))
			_ = bar.Add(evt.FilesInBatch)
		})

		sess := engine.Scan(context.Background(), resync.ScanOptions{
			FolderFilter: resyncFolders,
			ForceRefresh: resyncForce,
		})

		for {
			snap := sess.Snapshot()
			switch snap.Status {
			case resync.StatusCompleted, resync.StatusFailed, resync.StatusCancelled:
				bar.Finish()
				fmt.Printf("\nresync %s: %d/%d files, %d errors\n", snap.Status, snap.FilesProcessed, snap.TotalFiles, len(snap.Errors))
				if snap.Status == resync.StatusFailed {
					return fmt.Errorf("resync failed: %v", snap.Errors)
				}
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
	},
}

func init() {
	resyncCmd.Flags().StringSliceVar(&resyncFolders, "folder", nil, "restrict resync to folders matching this glob pattern (repeatable)")
	resyncCmd.Flags().BoolVar(&resyncForce, "force", false, "force a full refresh rather than resuming a checkpoint")
	rootCmd.AddCommand(resyncCmd)
}
