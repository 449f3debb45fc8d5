package config

// DefaultConfig returns a Config with its defaults set explicitly:
// batch size, concurrency, chunk size, resync pools.
func DefaultConfig() *Config {
	return &Config{
		StorageDir: "storage",

		RedisPort: 6379,

		EmbeddingModelDim: 1536,

		MultimodalProvider: MultimodalNone,

		BatchSize: 10,
		ConcurrentOperations: 3,
		ChunkSize: 1000,
		ChunkOverlap: 200,
		ResyncConcurrency: 8,
		ResyncLargeConcurrency: 2,
		ResyncSlowMs: 2000,
		MaxLocalFilesJSONBytes: 5 * 1024 * 1024,

		RawDecoderPath: "dcraw",
	}
}
