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

// Package tools defines the tool capability surface agents call into, and a
// process-wide registry of named tool factories. Factories are registered at
// plugin init and the registry is effectively immutable afterwards.
package tools

import (
	"context"
	"fmt"
	"sync"
)

// Tool is one callable capability. Validate is a cheap parameter check run
// before Run; Run performs the work and returns the tool's textual output.
type Tool interface {
	Name() string
	Description() string
	Validate(params map[string]string) bool
	Run(ctx context.Context, params map[string]string) (string, error)
}

// Factory creates a Tool from its static configuration parameters.
type Factory func(params map[string]string) (Tool, error)

type factoryRegistry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

var globalRegistry = &factoryRegistry{
	factories: make(map[string]Factory),
}

// Register registers a factory under a tool type name. Registering the same
// name twice overwrites.
func Register(toolType string, factory Factory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.factories[toolType] = factory
}

// GetFactory returns the factory for a tool type, or nil if not registered.
func GetFactory(toolType string) Factory {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	return globalRegistry.factories[toolType]
}

// Create instantiates a tool by registered type name.
func Create(toolType string, params map[string]string) (Tool, error) {
	factory := GetFactory(toolType)
	if factory == nil {
		return nil, fmt.Errorf("no factory registered for tool type %q", toolType)
	}
	tool, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool %q: %w", toolType, err)
	}
	return tool, nil
}

// List returns all registered tool type names.
func List() []string {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()
	names := make([]string, 0, len(globalRegistry.factories))
	for name := range globalRegistry.factories {
		names = append(names, name)
	}
	return names
}
