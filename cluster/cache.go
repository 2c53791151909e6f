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

package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"mlplane/platform/engine"
	"mlplane/platform/mlmodel"
	"mlplane/platform/shared/logger"
)

// deployedKeyPrefix namespaces the Redis mirror of deployed model documents.
const deployedKeyPrefix = "mlplane:deployed:"

// ReinitFunc rebuilds the serving object for a model, typically by
// re-reading the document and re-running Predictable.Init.
type ReinitFunc func(ctx context.Context, modelID string) (engine.Predictable, *mlmodel.Model, error)

// ModelCache is this node's deployed-model cache: live Predictables in
// process, and a Redis mirror of the deployed model documents (connector
// still encrypted) that survives node restarts.
type ModelCache struct {
	mu     sync.RWMutex
	models map[string]engine.Predictable

	rdb    *redis.Client
	reinit ReinitFunc
	log    *logger.Logger
}

// NewModelCache builds a cache. rdb may be nil to run without the Redis
// mirror.
func NewModelCache(rdb *redis.Client, reinit ReinitFunc, log *logger.Logger) *ModelCache {
	if log == nil {
		log = logger.New("cluster")
	}
	return &ModelCache{
		models: make(map[string]engine.Predictable),
		rdb:    rdb,
		reinit: reinit,
		log:    log,
	}
}

// SetReinit installs the reinit function after construction. The cache and
// the lifecycle controller reference each other, so bootstrap wires the cache
// first and installs the controller's reinit here.
func (c *ModelCache) SetReinit(fn ReinitFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reinit = fn
}

// Get returns the live serving object for a deployed model.
func (c *ModelCache) Get(modelID string) (engine.Predictable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.models[modelID]
	return p, ok
}

// Put installs the serving object and mirrors the model document. The
// document is stored as persisted, with its connector still encrypted.
func (c *ModelCache) Put(ctx context.Context, p engine.Predictable, m *mlmodel.Model) error {
	c.mu.Lock()
	if old, ok := c.models[m.ModelID]; ok && old != p {
		old.Close()
	}
	c.models[m.ModelID] = p
	c.mu.Unlock()

	if c.rdb == nil {
		return nil
	}
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode deployed model %s: %w", m.ModelID, err)
	}
	if err := c.rdb.Set(ctx, deployedKeyPrefix+m.ModelID, doc, 0).Err(); err != nil {
		return fmt.Errorf("failed to mirror deployed model %s: %w", m.ModelID, err)
	}
	return nil
}

// Remove closes and drops the serving object and its mirror entry.
func (c *ModelCache) Remove(ctx context.Context, modelID string) {
	c.mu.Lock()
	if p, ok := c.models[modelID]; ok {
		p.Close()
		delete(c.models, modelID)
	}
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, deployedKeyPrefix+modelID).Err(); err != nil {
			c.log.Warn("", "failed to drop deployed-model mirror", map[string]interface{}{
				"model_id": modelID,
				"error":    err.Error(),
			})
		}
	}
}

// DeployedModel reads the mirrored document of a deployed model.
func (c *ModelCache) DeployedModel(ctx context.Context, modelID string) (*mlmodel.Model, error) {
	if c.rdb == nil {
		return nil, fmt.Errorf("no deployed-model mirror configured")
	}
	raw, err := c.rdb.Get(ctx, deployedKeyPrefix+modelID).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("model %s is not deployed on this node", modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read deployed model %s: %w", modelID, err)
	}
	m := &mlmodel.Model{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("failed to decode deployed model %s: %w", modelID, err)
	}
	return m, nil
}

// DeployedIDs lists the models served by this node.
func (c *ModelCache) DeployedIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.models))
	for id := range c.models {
		ids = append(ids, id)
	}
	return ids
}

// Refresh handles one cache-refresh request. A model this node does not
// serve is a no-op success. A predictor update rebuilds the serving object
// from the current document; a plain update only refreshes the mirror.
func (c *ModelCache) Refresh(ctx context.Context, req RefreshRequest) error {
	c.mu.RLock()
	_, cached := c.models[req.ModelID]
	c.mu.RUnlock()
	if !cached {
		return nil
	}
	if c.reinit == nil {
		return fmt.Errorf("cache refresh requires a reinit function")
	}

	p, m, err := c.reinit(ctx, req.ModelID)
	if err != nil {
		return fmt.Errorf("failed to rebuild model %s: %w", req.ModelID, err)
	}

	if req.IsPredictorUpdate {
		return c.Put(ctx, p, m)
	}

	// document-only change: keep the live predictor, refresh the mirror
	p.Close()
	if c.rdb != nil {
		doc, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to encode deployed model %s: %w", req.ModelID, err)
		}
		if err := c.rdb.Set(ctx, deployedKeyPrefix+req.ModelID, doc, 0).Err(); err != nil {
			return fmt.Errorf("failed to mirror deployed model %s: %w", req.ModelID, err)
		}
	}
	return nil
}
