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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"mlplane/platform/shared/logger"
)

// RefreshStatusSuccess is the per-model value a node reports when its cache
// entry was refreshed.
const RefreshStatusSuccess = "success"

// DefaultRefreshTimeout bounds one node round trip of the fan-out.
const DefaultRefreshTimeout = 10 * time.Second

// RefreshRequest is the intra-cluster cache-refresh payload.
type RefreshRequest struct {
	ModelID           string `json:"model_id"`
	IsPredictorUpdate bool   `json:"is_predictor_update"`
}

// RefreshResponse maps model id to "success" or an error string, per node.
type RefreshResponse map[string]string

// CacheRefreshClient fans cache-refresh requests out to cluster nodes over
// HTTP. Failures are collected, never retried here.
type CacheRefreshClient struct {
	client *http.Client
	log    *logger.Logger
}

// NewCacheRefreshClient builds a fan-out client. A nil httpClient gets a
// default with the refresh timeout.
func NewCacheRefreshClient(httpClient *http.Client, log *logger.Logger) *CacheRefreshClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultRefreshTimeout}
	}
	if log == nil {
		log = logger.New("cluster")
	}
	return &CacheRefreshClient{client: httpClient, log: log}
}

// RefreshCache asks every target node to refresh its cache entry for the
// model. Success means every node's response map contains
// {model_id: "success"}. The returned list holds the ids of nodes that
// failed, sorted for stable reporting.
func (c *CacheRefreshClient) RefreshCache(ctx context.Context, nodes []Node, modelID string, isPredictorUpdate bool) []string {
	body, err := json.Marshal(RefreshRequest{
		ModelID:           modelID,
		IsPredictorUpdate: isPredictorUpdate,
	})
	if err != nil {
		failed := make([]string, 0, len(nodes))
		for _, n := range nodes {
			failed = append(failed, n.ID)
		}
		sort.Strings(failed)
		return failed
	}

	var (
		mu     sync.Mutex
		failed []string
		wg     sync.WaitGroup
	)
	for _, node := range nodes {
		wg.Add(1)
		go func(node Node) {
			defer wg.Done()
			if err := c.refreshNode(ctx, node, body, modelID); err != nil {
				c.log.Warn("", "cache refresh failed on node", map[string]interface{}{
					"node_id":  node.ID,
					"model_id": modelID,
					"error":    err.Error(),
				})
				mu.Lock()
				failed = append(failed, node.ID)
				mu.Unlock()
			}
		}(node)
	}
	wg.Wait()

	sort.Strings(failed)
	return failed
}

func (c *CacheRefreshClient) refreshNode(ctx context.Context, node Node, body []byte, modelID string) error {
	url := node.Address + "/cache/refresh"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("refresh call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("refresh returned status %d", resp.StatusCode)
	}

	var result RefreshResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if result[modelID] != RefreshStatusSuccess {
		return fmt.Errorf("node %s reported %q for model %s", node.ID, result[modelID], modelID)
	}
	return nil
}
