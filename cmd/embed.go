package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/nimbusdocs/ingestcore/internal/embedsession"
)

var embedForce bool

var embedCmd = &cobra.Command{
	Use:   "embed <workspace> <folder>",
	Short: "Embed a folder's documents into a workspace's vector collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, folder := args[0], args[1]

		d, err := buildDeps(cfg)
		if err != nil {
			return err
		}
		defer d.bridge.Close()

		docRoot := filepath.Join(cfg.StorageDir, "documents", folder)
		entries, err := os.ReadDir(docRoot)
		if err != nil {
			return fmt.Errorf("listing %s: %w", docRoot, err)
		}
		var paths []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
				paths = append(paths, filepath.Join(docRoot, e.Name()))
			}
		}
		if len(paths) == 0 {
			fmt.Println("embed: no documents found")
			return nil
		}

		bar := progressbar.Default(int64(len(paths)), "embedding "+workspace)

		mgr := embedsession.NewManager(d.index, d.cache, d.gateway, d.describer, d.bridge, embedsession.ManagerConfig{
			ChunkSize:    cfg.ChunkSize,
			ChunkOverlap: cfg.ChunkOverlap,
			MaxImageEdge: 1024,
		}, func(evt embedsession.DocumentEvent) {
			_ = bar.Add(1)
		})

		sess, err := mgr.Start(context.Background(), workspace, paths, embedsession.StartOptions{ForceReEmbed: embedForce})
		if err != nil {
			return err
		}

		for {
			snap := sess.Snapshot()
			if snap.Status.IsTerminal() {
				bar.Finish()
				fmt.Printf("\nembed %s: %d/%d documents, %d chunks, %d images, %d errors\n",
					snap.Status, snap.DocumentsProcessed, snap.TotalDocuments,
					snap.Metrics.ChunksEmbedded, snap.Metrics.ImagesEmbedded, len(snap.Errors))
				if snap.Status == embedsession.StatusFailed {
					return fmt.Errorf("embed failed: %v", snap.Errors)
				}
				if err := d.index.Persist(context.Background()); err != nil {
					return fmt.Errorf("persisting vector index: %w", err)
				}
				return nil
			}
			time.Sleep(100 * time.Millisecond)
		}
	},
}

func init() {
	embedCmd.Flags().BoolVar(&embedForce, "force", false, "re-embed even if already cached")
	rootCmd.AddCommand(embedCmd)
}
