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

package engine

import (
	"context"
	"fmt"
	"sync"

	"mlplane/platform/connector"
	"mlplane/platform/tensor"
)

// Executor performs remote inference for one decrypted connector.
type Executor interface {
	ExecutePredict(ctx context.Context, input *Input) (*tensor.TensorOutput, error)
}

// ExecutorFactory creates an Executor from a decrypted connector clone.
type ExecutorFactory func(conn *connector.Connector, deps Deps) (Executor, error)

// executorRegistry holds factories keyed by connector protocol.
// Thread-safe for concurrent access.
type executorRegistry struct {
	factories map[string]ExecutorFactory
	mu        sync.RWMutex
}

var globalExecutors = &executorRegistry{
	factories: make(map[string]ExecutorFactory),
}

// RegisterExecutor registers a factory for a connector protocol. Built-in
// executors register themselves during package init; hosts may add more
// protocols by name without touching the lifecycle controller.
func RegisterExecutor(protocol string, factory ExecutorFactory) {
	globalExecutors.mu.Lock()
	defer globalExecutors.mu.Unlock()
	globalExecutors.factories[protocol] = factory
}

// NewExecutor creates an executor for the connector's protocol.
func NewExecutor(conn *connector.Connector, deps Deps) (Executor, error) {
	globalExecutors.mu.RLock()
	factory, ok := globalExecutors.factories[conn.Protocol]
	globalExecutors.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported connector protocol: %q", conn.Protocol)
	}
	return factory(conn, deps)
}
