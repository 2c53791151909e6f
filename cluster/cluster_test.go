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
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlplane/platform/engine"
	"mlplane/platform/mlmodel"
	"mlplane/platform/tensor"
)

type stubPredictable struct {
	closed int32
}

func (s *stubPredictable) Init(*mlmodel.Model, engine.Deps, engine.Encryptor) error { return nil }

func (s *stubPredictable) Predict(context.Context, *engine.Input) (*tensor.TensorOutput, error) {
	return tensor.Single(tensor.ModelTensor{Result: "stub"}), nil
}

func (s *stubPredictable) IsModelReady() bool { return true }

func (s *stubPredictable) Close() { atomic.AddInt32(&s.closed, 1) }

func (s *stubPredictable) closeCount() int32 { return atomic.LoadInt32(&s.closed) }

func newMirroredCache(t *testing.T, reinit ReinitFunc) (*ModelCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewModelCache(rdb, reinit, nil), mr
}

func TestCachePutGetRemove(t *testing.T) {
	cache, mr := newMirroredCache(t, nil)
	ctx := context.Background()

	p := &stubPredictable{}
	model := &mlmodel.Model{ModelID: "m-1", Name: "embedder"}
	require.NoError(t, cache.Put(ctx, p, model))

	got, ok := cache.Get("m-1")
	require.True(t, ok)
	assert.Same(t, engine.Predictable(p), got)
	assert.True(t, mr.Exists("mlplane:deployed:m-1"))

	mirrored, err := cache.DeployedModel(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "embedder", mirrored.Name)

	cache.Remove(ctx, "m-1")
	_, ok = cache.Get("m-1")
	assert.False(t, ok)
	assert.False(t, mr.Exists("mlplane:deployed:m-1"))
	assert.Equal(t, int32(1), p.closeCount())
}

func TestCachePutClosesReplacedPredictable(t *testing.T) {
	cache := NewModelCache(nil, nil, nil)
	ctx := context.Background()

	old := &stubPredictable{}
	model := &mlmodel.Model{ModelID: "m-1"}
	require.NoError(t, cache.Put(ctx, old, model))

	replacement := &stubPredictable{}
	require.NoError(t, cache.Put(ctx, replacement, model))
	assert.Equal(t, int32(1), old.closeCount())
	assert.Equal(t, int32(0), replacement.closeCount())
}

func TestRefreshUncachedModelIsNoOp(t *testing.T) {
	cache := NewModelCache(nil, func(context.Context, string) (engine.Predictable, *mlmodel.Model, error) {
		t.Fatal("reinit must not run for uncached models")
		return nil, nil, nil
	}, nil)

	assert.NoError(t, cache.Refresh(context.Background(), RefreshRequest{ModelID: "m-unknown"}))
}

func TestRefreshPredictorUpdateSwapsServingObject(t *testing.T) {
	rebuilt := &stubPredictable{}
	reinit := func(ctx context.Context, modelID string) (engine.Predictable, *mlmodel.Model, error) {
		return rebuilt, &mlmodel.Model{ModelID: modelID, Name: "after"}, nil
	}
	cache, _ := newMirroredCache(t, reinit)
	ctx := context.Background()

	original := &stubPredictable{}
	require.NoError(t, cache.Put(ctx, original, &mlmodel.Model{ModelID: "m-1", Name: "before"}))

	require.NoError(t, cache.Refresh(ctx, RefreshRequest{ModelID: "m-1", IsPredictorUpdate: true}))

	got, ok := cache.Get("m-1")
	require.True(t, ok)
	assert.Same(t, engine.Predictable(rebuilt), got)
	assert.Equal(t, int32(1), original.closeCount())

	mirrored, err := cache.DeployedModel(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "after", mirrored.Name)
}

func TestRefreshDocumentOnlyKeepsServingObject(t *testing.T) {
	rebuilt := &stubPredictable{}
	reinit := func(ctx context.Context, modelID string) (engine.Predictable, *mlmodel.Model, error) {
		return rebuilt, &mlmodel.Model{ModelID: modelID, Name: "after"}, nil
	}
	cache, _ := newMirroredCache(t, reinit)
	ctx := context.Background()

	original := &stubPredictable{}
	require.NoError(t, cache.Put(ctx, original, &mlmodel.Model{ModelID: "m-1", Name: "before"}))

	require.NoError(t, cache.Refresh(ctx, RefreshRequest{ModelID: "m-1"}))

	got, ok := cache.Get("m-1")
	require.True(t, ok)
	assert.Same(t, engine.Predictable(original), got)
	assert.Equal(t, int32(0), original.closeCount())
	assert.Equal(t, int32(1), rebuilt.closeCount())

	mirrored, err := cache.DeployedModel(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, "after", mirrored.Name)
}

func TestRefreshReinitFailure(t *testing.T) {
	reinit := func(context.Context, string) (engine.Predictable, *mlmodel.Model, error) {
		return nil, nil, errors.New("document gone")
	}
	cache := NewModelCache(nil, reinit, nil)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, &stubPredictable{}, &mlmodel.Model{ModelID: "m-1"}))

	err := cache.Refresh(ctx, RefreshRequest{ModelID: "m-1", IsPredictorUpdate: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to rebuild model m-1")
}

func refreshNode(t *testing.T, hits *int32, respond func(RefreshRequest) (int, RefreshResponse)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		var req RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, body := respond(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRefreshCacheFanOut(t *testing.T) {
	var aHits, bHits int32
	success := func(req RefreshRequest) (int, RefreshResponse) {
		return http.StatusOK, RefreshResponse{req.ModelID: RefreshStatusSuccess}
	}
	nodeA := refreshNode(t, &aHits, success)
	nodeB := refreshNode(t, &bHits, success)

	client := NewCacheRefreshClient(nil, nil)
	failed := client.RefreshCache(context.Background(), []Node{
		{ID: "node-a", Address: nodeA.URL},
		{ID: "node-b", Address: nodeB.URL},
	}, "m-1", true)

	assert.Empty(t, failed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&aHits))
	assert.Equal(t, int32(1), atomic.LoadInt32(&bHits))
}

func TestRefreshCacheCollectsFailures(t *testing.T) {
	var aHits, bHits, cHits int32
	nodeA := refreshNode(t, &aHits, func(req RefreshRequest) (int, RefreshResponse) {
		return http.StatusOK, RefreshResponse{req.ModelID: RefreshStatusSuccess}
	})
	nodeB := refreshNode(t, &bHits, func(req RefreshRequest) (int, RefreshResponse) {
		return http.StatusOK, RefreshResponse{req.ModelID: "failed to rebuild model m-1"}
	})
	nodeC := refreshNode(t, &cHits, func(RefreshRequest) (int, RefreshResponse) {
		return http.StatusInternalServerError, RefreshResponse{}
	})

	client := NewCacheRefreshClient(nil, nil)
	failed := client.RefreshCache(context.Background(), []Node{
		{ID: "node-c", Address: nodeC.URL},
		{ID: "node-a", Address: nodeA.URL},
		{ID: "node-b", Address: nodeB.URL},
	}, "m-1", false)

	assert.Equal(t, []string{"node-b", "node-c"}, failed)
}

func TestRefreshCacheUnreachableNode(t *testing.T) {
	client := NewCacheRefreshClient(nil, nil)
	failed := client.RefreshCache(context.Background(), []Node{
		{ID: "node-x", Address: "http://127.0.0.1:1"},
	}, "m-1", false)

	assert.Equal(t, []string{"node-x"}, failed)
}

func TestStaticStateProvider(t *testing.T) {
	p := NewStaticStateProvider("local", []Node{{ID: "a"}, {ID: "b"}})
	assert.Equal(t, "local", p.LocalNodeID())
	assert.Len(t, p.Nodes(), 2)

	p.SetNodes([]Node{{ID: "a"}})
	assert.Len(t, p.Nodes(), 1)
}
