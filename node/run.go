// Copyright 2025 MLPlane
// SPDX-License-Identifier: Apache-2.0
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package node

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver

	"mlplane/platform/access"
	"mlplane/platform/agent"
	"mlplane/platform/cluster"
	"mlplane/platform/engine"
	"mlplane/platform/lifecycle"
	"mlplane/platform/memory"
	"mlplane/platform/shared/logger"
	"mlplane/platform/shared/settings"
	"mlplane/platform/store"
	"mlplane/platform/tools"
)

// Run boots a cluster node from the settings file and blocks serving its
// transport. The settings path comes from MLPLANE_SETTINGS, defaulting to
// ./mlplane.yaml.
func Run() error {
	path := os.Getenv("MLPLANE_SETTINGS")
	if path == "" {
		path = "mlplane.yaml"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.New("bootstrap")
	cfg, err := settings.Load(path)
	if err != nil {
		return err
	}

	trusted, err := settings.NewTrustedEndpoints(cfg.TrustedConnectorEndpoints)
	if err != nil {
		return fmt.Errorf("invalid trusted endpoint settings: %w", err)
	}
	go func() {
		err := settings.Watch(ctx, path, log, func(updated *settings.Config) {
			if err := trusted.Set(updated.TrustedConnectorEndpoints); err != nil {
				log.ErrorWithErr("", "Ignoring trusted endpoint update", err, nil)
			}
		})
		if err != nil {
			log.ErrorWithErr("", "Settings watcher stopped", err, nil)
		}
	}()

	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("failed to open postgres: %w", err)
	}
	defer db.Close()
	modelStore := store.NewPostgresStore(db)
	if err := modelStore.EnsureSchema(ctx); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
	}

	encryptor, err := buildEncryptor(ctx, cfg.Encryption)
	if err != nil {
		return err
	}

	mem, err := buildMemoryStore(ctx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	tools.Register(tools.ListModelsToolType, func(map[string]string) (tools.Tool, error) {
		return tools.NewListModelsTool(modelStore), nil
	})
	tools.Register(tools.SearchDetectorsToolType, func(map[string]string) (tools.Tool, error) {
		return tools.NewSearchDetectorsTool(modelStore), nil
	})

	state := cluster.NewStaticStateProvider(cfg.Cluster.NodeID, seedNodes(cfg.Cluster.SeedNodes))
	httpClient := &http.Client{Timeout: 60 * time.Second}
	refresh := cluster.NewCacheRefreshClient(&http.Client{Timeout: cluster.DefaultRefreshTimeout}, nil)

	// The cache and the controller reference each other: the cache applies
	// refreshes through the controller's reinit, so wire the cache first and
	// hand it the controller's method afterwards.
	cache := cluster.NewModelCache(rdb, nil, nil)
	controller := lifecycle.NewController(lifecycle.Config{
		Store:      modelStore,
		Access:     access.NewMediator(modelStore),
		Encryptor:  encryptor,
		Trusted:    trusted,
		State:      state,
		Refresh:    refresh,
		Cache:      cache,
		HTTPClient: httpClient,
	})
	cache.SetReinit(controller.Reinit)

	executor := agent.NewExecutor(modelStore, controller, mem)

	server := NewServer(Config{
		Lifecycle: controller,
		Agents:    executor,
		Cache:     cache,
		JWTSecret: []byte(cfg.HTTP.JWTSecret),
	})
	return server.ListenAndServe(cfg.HTTP.ListenAddr)
}

func buildEncryptor(ctx context.Context, cfg settings.EncryptionConfig) (engine.Encryptor, error) {
	var provider engine.MasterKeyProvider
	switch {
	case cfg.SecretARN != "":
		p, err := engine.NewSecretsManagerKeyProvider(ctx, cfg.AWSRegion, cfg.SecretARN)
		if err != nil {
			return nil, err
		}
		provider = p
	case cfg.MasterKeyBase64 != "":
		p, err := engine.NewStaticKeyProvider(cfg.MasterKeyBase64)
		if err != nil {
			return nil, err
		}
		provider = p
	default:
		return nil, fmt.Errorf("encryption settings name neither a master key nor a secret ARN")
	}

	key, err := provider.MasterKey(ctx)
	if err != nil {
		return nil, err
	}
	return engine.NewAESEncryptor(key)
}

func buildMemoryStore(ctx context.Context, cfg settings.MongoConfig, log *logger.Logger) (memory.Store, error) {
	if cfg.URI == "" {
		log.Warn("", "No Mongo URI configured, conversation memory is in-process only", nil)
		return memory.NewInMemoryStore(), nil
	}
	s, err := memory.NewMongoStore(ctx, cfg.URI, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// seedNodes parses "id=http://host:port" seed entries. Entries without an id
// use the address for both.
func seedNodes(entries []string) []cluster.Node {
	nodes := make([]cluster.Node, 0, len(entries))
	for _, entry := range entries {
		id, addr := entry, entry
		if i := strings.Index(entry, "="); i > 0 {
			id, addr = entry[:i], entry[i+1:]
		}
		nodes = append(nodes, cluster.Node{ID: id, Address: addr, DataNode: true})
	}
	return nodes
}
