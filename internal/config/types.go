package config

// MultimodalProvider identifies the multimodal (image+text) embedder
// backend, when one is configured.
type MultimodalProvider string

const (
	MultimodalNone    MultimodalProvider = "none"
	MultimodalGeneric MultimodalProvider = "generic"
)

// Config is the top-level runtime configuration for the ingestion core,
// loaded from an optional YAML file and overlaid by bare (unprefixed)
// environment variables such as STORAGE_DIR and BATCH_SIZE.
type Config struct {
	StorageDir string `yaml:"storage_dir" koanf:"storage_dir"`

	RedisHost string `yaml:"redis_host" koanf:"redis_host"`
	RedisPort int `yaml:"redis_port" koanf:"redis_port"`

	EmbeddingBasePath string `yaml:"embedding_base_path" koanf:"embedding_base_path"`
	EmbeddingModelPref string `yaml:"embedding_model_pref" koanf:"embedding_model_pref"`
	EmbeddingModelDim int `yaml:"embedding_model_dim" koanf:"embedding_model_dim"`

	Image2TextBasePath string `yaml:"image2text_base_path" koanf:"image2text_base_path"`
	Image2TextModelPref string `yaml:"image2text_model_pref" koanf:"image2text_model_pref"`

	MultimodalProvider MultimodalProvider `yaml:"multimodal_provider" koanf:"multimodal_provider"`
	MultimodalBasePath string `yaml:"multimodal_base_path" koanf:"multimodal_base_path"`
	MultimodalModel string `yaml:"multimodal_model" koanf:"multimodal_model"`
	MultimodalModelDim int `yaml:"multimodal_model_dim" koanf:"multimodal_model_dim"`

	BatchSize int `yaml:"batch_size" koanf:"batch_size"`
	ConcurrentOperations int `yaml:"concurrent_operations" koanf:"concurrent_operations"`
	ChunkSize int `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	ResyncConcurrency int `yaml:"resync_concurrency" koanf:"resync_concurrency"`
	ResyncLargeConcurrency int `yaml:"resync_large_concurrency" koanf:"resync_large_concurrency"`
	ResyncSlowMs int `yaml:"resync_slow_ms" koanf:"resync_slow_ms"`
	MaxLocalFilesJSONBytes int `yaml:"max_localfiles_json_bytes" koanf:"max_localfiles_json_bytes"`

	RawDecoderPath string `yaml:"raw_decoder_path" koanf:"raw_decoder_path"`
}
