package metastore

import (
	"context"
	"encoding/json"
	"log"

	"github.com/nimbusdocs/ingestcore/internal/changebus"
)

// WireChangeBusConsumer subscribes to the file:metadata:updates channel
// and merges "add" events into the folder index, deleting the transient
// key once consumed. "remove" events delete the named item directly; no
// transient key is involved.
func (s *Store) WireChangeBusConsumer(ctx context.Context) {
	s.bus.Subscribe(ctx, changebus.ChannelFileMetadataUpdates, func(payload []byte) {
		var update changebus.FileUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			log.Printf("metastore: decoding change bus payload: %v", err)
			return
		}
		if err := s.handleUpdate(ctx, update); err != nil {
			log.Printf("metastore: handling %s for %s/%s: %v", update.Action, update.Folder, update.File, err)
		}
	})
}

func (s *Store) handleUpdate(ctx context.Context, u changebus.FileUpdate) error {
	switch u.Action {
	case "add":
		meta, err := s.GetFileMetadata(ctx, u.Folder, u.File)
		if err != nil {
			return err
		}
		if meta == nil {
			return nil
		}
		if err := s.AddFileToFolder(ctx, u.Folder, *meta); err != nil {
			return err
		}
		return s.DeleteFileMetadata(ctx, u.Folder, u.File)
	case "remove":
		return s.RemoveFileFromFolder(ctx, u.Folder, u.File)
	default:
		return nil
	}
}
