package config

import ("os"
	"path/filepath"
	"testing")

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.StorageDir != "storage" {
		t.Errorf("expected default storage_dir %q, got %q", "storage", cfg.StorageDir)
	}
	if cfg.BatchSize != 10 {
		t.Errorf("expected default batch_size 10, got %d", cfg.BatchSize)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 {
		t.Errorf("expected default chunk size/overlap 1000/200, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.ResyncConcurrency != 8 || cfg.ResyncLargeConcurrency != 2 {
		t.Errorf("expected default resync pools 8/2, got %d/%d", cfg.ResyncConcurrency, cfg.ResyncLargeConcurrency)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	original := DefaultConfig()
	original.StorageDir = "/data/workspace"
	original.RedisHost = "localhost"
	original.RedisPort = 6380
	original.EmbeddingBasePath = "http://embedder.local"
	original.EmbeddingModelDim = 768
	original.MultimodalProvider = MultimodalGeneric
	original.MultimodalBasePath = "http://embedder.local"

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.StorageDir != original.StorageDir {
		t.Errorf("storage_dir: got %q, want %q", loaded.StorageDir, original.StorageDir)
	}
	if loaded.RedisHost != original.RedisHost || loaded.RedisPort != original.RedisPort {
		t.Errorf("redis: got %q:%d, want %q:%d", loaded.RedisHost, loaded.RedisPort, original.RedisHost, original.RedisPort)
	}
	if loaded.EmbeddingBasePath != original.EmbeddingBasePath {
		t.Errorf("embedding_base_path: got %q, want %q", loaded.EmbeddingBasePath, original.EmbeddingBasePath)
	}
	if loaded.EmbeddingModelDim != original.EmbeddingModelDim {
		t.Errorf("embedding_model_dim: got %d, want %d", loaded.EmbeddingModelDim, original.EmbeddingModelDim)
	}
	if loaded.MultimodalProvider != original.MultimodalProvider {
		t.Errorf("multimodal_provider: got %q, want %q", loaded.MultimodalProvider, original.MultimodalProvider)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.StorageDir != "storage" {
		t.Errorf("expected default storage_dir, got %q", cfg.StorageDir)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	os.Setenv("BATCH_SIZE", "25")
	os.Setenv("STORAGE_DIR", "/env/storage")
	defer os.Unsetenv("BATCH_SIZE")
	defer os.Unsetenv("STORAGE_DIR")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.BatchSize != 25 {
		t.Errorf("env override failed: got batch_size %d, want 25", loaded.BatchSize)
	}
	if loaded.StorageDir != "/env/storage" {
		t.Errorf("env override failed: got storage_dir %q, want %q", loaded.StorageDir, "/env/storage")
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should be valid, got: %v", err)
	}
}

func TestValidateEmptyStorageDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDir = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty storage_dir")
	}
}

func TestValidateNonPositiveBatchSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for non-positive batch_size")
	}
}

func TestValidateNegativeConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResyncConcurrency = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for negative resync_concurrency")
	}
}

func TestValidateInvalidMultimodalProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MultimodalProvider = "unknown"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid multimodal_provider")
	}
}

func TestValidateMultimodalRequiresBasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MultimodalProvider = MultimodalGeneric
	cfg.MultimodalBasePath = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for multimodal provider without base path")
	}
}

func TestRedisConfigured(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RedisConfigured() {
		t.Error("expected RedisConfigured false with no host set")
	}
	cfg.RedisHost = "localhost"
	if !cfg.RedisConfigured() {
		t.Error("expected RedisConfigured true once host is set")
	}
}

func TestMultimodalConfigured(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MultimodalConfigured() {
		t.Error("expected MultimodalConfigured false by default")
	}
	cfg.MultimodalProvider = MultimodalGeneric
	cfg.MultimodalBasePath = "http://embedder.local"
	if !cfg.MultimodalConfigured() {
		t.Error("expected MultimodalConfigured true once provider and base path are set")
	}
}
