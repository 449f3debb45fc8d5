package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/nimbusdocs/ingestcore/internal/changebus"
	"github.com/nimbusdocs/ingestcore/internal/ingesterr"
)

const (
	keyPrefix        = "ns:"
	folderKeyFmt     = keyPrefix + "folder:%s"
	fileMetaKeyFmt   = keyPrefix + "file:meta:%s:%s"
	deprecatedDirKey = keyPrefix + "directory"
)

// Store is the two-tier metadata store: Redis is the fast path when
// configured, the on-disk JSON mirror at <storage>/cache/folders/<folder>.json
// is the tier of record.
type Store struct {
	redis   *redis.Client // nil when Redis is not configured
	diskDir string
	bus     changebus.Bus

	locks sync.Map // folder name -> *sync.Mutex
}

// New opens a Store rooted at storageDir. redisClient may be nil, in
// which case the store degrades to disk-only. bus is used for
// Publish/Subscribe.
func New(redisClient *redis.Client, storageDir string, bus changebus.Bus) (*Store, error) {
	dir := filepath.Join(storageDir, "cache", "folders")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("metastore: create disk cache dir: %w", err)
	}
	return &Store{redis: redisClient, diskDir: dir, bus: bus}, nil
}

func (s *Store) lockFor(name string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(name, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *Store) diskPath(name string) string {
	return filepath.Join(s.diskDir, name+".json")
}

// GetFolder returns the folder index, preferring Redis then falling back
// to disk. A nil result with a nil error means the folder is not yet
// known to either tier.
func (s *Store) GetFolder(ctx context.Context, name string) (*FolderIndex, error) {
	if s.redis != nil {
		data, err := s.redis.Get(ctx, fmt.Sprintf(folderKeyFmt, name)).Bytes()
		if err == nil {
			var folder FolderIndex
			if err := json.Unmarshal(data, &folder); err != nil {
				return nil, fmt.Errorf("metastore: decode redis folder %s: %w", name, err)
			}
			if err := s.writeDisk(name, &folder); err != nil {
				log.Printf("metastore: sync folder %s to disk: %v", name, err)
			}
			return &folder, nil
		}
		if !errors.Is(err, redis.Nil) {
			log.Printf("metastore: redis unavailable, falling back to disk for folder %s: %v", name, err)
		}
	}
	return s.readDisk(name)
}

func (s *Store) readDisk(name string) (*FolderIndex, error) {
	data, err := os.ReadFile(s.diskPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("metastore: read disk folder %s: %w", name, err)
	}
	var folder FolderIndex
	if err := json.Unmarshal(data, &folder); err != nil {
		return nil, fmt.Errorf("metastore: decode disk folder %s: %w", name, err)
	}
	return &folder, nil
}

func (s *Store) writeDisk(name string, folder *FolderIndex) error {
	data, err := json.Marshal(folder)
	if err != nil {
		return fmt.Errorf("metastore: encode folder %s: %w", name, err)
	}
	return os.WriteFile(s.diskPath(name), data, 0o644)
}

// SaveFolder writes folder to both tiers. Items are already FileMetadata
// (pageContent and imageBase64 are not representable on that type), so
// the stripping contract is enforced at the type level.
func (s *Store) SaveFolder(ctx context.Context, name string, folder *FolderIndex) error {
	mu := s.lockFor(name)
	mu.Lock()
	defer mu.Unlock()

	folder.Name = name
	folder.Type = "folder"

	if err := s.writeDisk(name, folder); err != nil {
		return err
	}

	if s.redis != nil {
		data, err := json.Marshal(folder)
		if err != nil {
			return fmt.Errorf("metastore: encode folder %s: %w", name, err)
		}
		if err := s.redis.Set(ctx, fmt.Sprintf(folderKeyFmt, name), data, 0).Err(); err != nil {
			log.Printf("metastore: redis unavailable, folder %s saved to disk only: %v", name, err)
		}
	}

	// The aggregated single-key directory dump caused memory spikes
	// upstream and is intentionally never written here.
	_ = deprecatedDirKey

	return nil
}

// AddFileToFolder upserts item into folder's index by name, creating the
// folder if it does not yet exist. Idempotent on item.Name.
func (s *Store) AddFileToFolder(ctx context.Context, name string, item FileMetadata) error {
	folder, err := s.GetFolder(ctx, name)
	if err != nil {
		return err
	}
	if folder == nil {
		folder = NewFolderIndex(name)
	}
	folder.Upsert(item)
	return s.SaveFolder(ctx, name, folder)
}

// RemoveFileFromFolder deletes fileName from folder's index, if present.
func (s *Store) RemoveFileFromFolder(ctx context.Context, name, fileName string) error {
	folder, err := s.GetFolder(ctx, name)
	if err != nil {
		return err
	}
	if folder == nil {
		return nil
	}
	folder.Remove(fileName)
	return s.SaveFolder(ctx, name, folder)
}

// SaveFileMetadata stores a transient per-file metadata record used as a
// pub/sub handoff between ingestion and the folder index consumer. It
// refuses to overwrite an existing key: the expected consumer deletes
// the key after consuming it, so a still-present key means a previous
// publish has not yet been drained.
func (s *Store) SaveFileMetadata(ctx context.Context, folder, file string, meta FileMetadata) error {
	if s.redis == nil {
		return fmt.Errorf("metastore: transient file metadata requires redis: %w", ingesterr.ErrBackendUnavailable)
	}
	key := fmt.Sprintf(fileMetaKeyFmt, folder, file)
	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("metastore: checking transient key %s: %w", key, err)
	}
	if exists > 0 {
		return nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("metastore: encode file metadata: %w", err)
	}
	return s.redis.Set(ctx, key, data, 0).Err()
}

// GetFileMetadata reads (without deleting) the transient metadata key.
func (s *Store) GetFileMetadata(ctx context.Context, folder, file string) (*FileMetadata, error) {
	if s.redis == nil {
		return nil, nil
	}
	key := fmt.Sprintf(fileMetaKeyFmt, folder, file)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("metastore: reading transient key %s: %w", key, err)
	}
	var meta FileMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("metastore: decode transient key %s: %w", key, err)
	}
	return &meta, nil
}

// DeleteFileMetadata removes the transient metadata key after a consumer
// has drained it.
func (s *Store) DeleteFileMetadata(ctx context.Context, folder, file string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, fmt.Sprintf(fileMetaKeyFmt, folder, file)).Err()
}

// Publish forwards to the configured Change Bus.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	return s.bus.Publish(ctx, channel, payload)
}

// Subscribe forwards to the configured Change Bus.
func (s *Store) Subscribe(ctx context.Context, channel string, h changebus.Handler) {
	s.bus.Subscribe(ctx, channel, h)
}
