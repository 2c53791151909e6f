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

// Package cluster covers the node-facing side of the control plane: the
// cluster-state contract, the cache-refresh fan-out client, and the per-node
// deployed-model cache.
package cluster

import "sync"

// Node is one cluster member as the state service reports it.
type Node struct {
	ID       string `json:"id"`
	Address  string `json:"address"`
	DataNode bool   `json:"data_node"`
}

// StateProvider is the cluster-state service contract. Implementations must
// be safe for concurrent reads.
type StateProvider interface {
	// Nodes returns the current cluster members.
	Nodes() []Node
	// LocalNodeID identifies this node in fan-out responses.
	LocalNodeID() string
}

// StaticStateProvider serves a fixed member list, replaceable at runtime.
// Production wires it from the seed-node settings; tests swap members
// directly.
type StaticStateProvider struct {
	mu      sync.RWMutex
	localID string
	nodes   []Node
}

// NewStaticStateProvider builds a provider with the given local node and
// members.
func NewStaticStateProvider(localID string, nodes []Node) *StaticStateProvider {
	return &StaticStateProvider{localID: localID, nodes: nodes}
}

func (p *StaticStateProvider) Nodes() []Node {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

func (p *StaticStateProvider) LocalNodeID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.localID
}

// SetNodes replaces the member list.
func (p *StaticStateProvider) SetNodes(nodes []Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = nodes
}
