package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/nimbusdocs/ingestcore/internal/changebus"
	"github.com/nimbusdocs/ingestcore/internal/config"
	"github.com/nimbusdocs/ingestcore/internal/db"
	"github.com/nimbusdocs/ingestcore/internal/embedder"
	"github.com/nimbusdocs/ingestcore/internal/metastore"
	"github.com/nimbusdocs/ingestcore/internal/pathutil"
	"github.com/nimbusdocs/ingestcore/internal/vectorindex"
	"github.com/nimbusdocs/ingestcore/internal/vision"
)

// deps bundles the shared collaborators every subcommand wires together
// from the loaded Config, so resync/embed/query build the same stack a
// long-running service would.
type deps struct {
	store     *metastore.Store
	cache     *pathutil.VectorCache
	index     *vectorindex.Index
	gateway   *embedder.Gateway
	describer *vision.Describer
	bridge    *db.DB
	bus       changebus.Bus
}

func buildDeps(c *config.Config) (*deps, error) {
	var redisClient *redis.Client
	var bus changebus.Bus = changebus.NewInProcess()
	if c.RedisConfigured() {
		redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)})
		bus = changebus.NewRedis(redisClient)
	}

	store, err := metastore.New(redisClient, c.StorageDir, bus)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	cache, err := pathutil.NewVectorCache(c.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("opening vector cache: %w", err)
	}

	index := vectorindex.New(c.StorageDir)

	bridge, err := db.Open(c.StorageDir + "/document-vectors.db")
	if err != nil {
		return nil, fmt.Errorf("opening document-vector bridge: %w", err)
	}

	multimodalBaseURL := ""
	if c.MultimodalConfigured() {
		multimodalBaseURL = c.MultimodalBasePath
	}
	gateway := embedder.New(embedder.Config{
		TextBaseURL:       c.EmbeddingBasePath,
		TextModel:         c.EmbeddingModelPref,
		TextModelDim:      c.EmbeddingModelDim,
		MultimodalBaseURL: multimodalBaseURL,
		MultimodalModel:   c.MultimodalModel,
		MultimodalDim:     c.MultimodalModelDim,
	})

	var describer *vision.Describer
	if c.Image2TextBasePath != "" {
		describer = vision.New("", c.Image2TextBasePath, c.Image2TextModelPref)
	}

	return &deps{
		store:     store,
		cache:     cache,
		index:     index,
		gateway:   gateway,
		describer: describer,
		bridge:    bridge,
		bus:       bus,
	}, nil
}
