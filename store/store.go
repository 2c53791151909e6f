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

// Package store adapts the persistent document index: model documents,
// model-group documents with their version counters, connector documents,
// and agent documents.
package store

import (
	"context"
	"errors"

	"mlplane/platform/agent"
	"mlplane/platform/connector"
	"mlplane/platform/mlmodel"
)

var (
	// ErrNotFound reports a missing document.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict reports that an optimistic concurrency check lost
	// against a concurrent writer. Callers re-read and retry.
	ErrVersionConflict = errors.New("version conflict")
)

// ConcurrencyToken carries the optimistic concurrency state of a document
// read, to be presented back on write.
type ConcurrencyToken struct {
	SeqNo       int64
	PrimaryTerm int64
}

// WriteOptions control document writes.
type WriteOptions struct {
	// RefreshImmediate makes the write visible to searches before the call
	// returns.
	RefreshImmediate bool
}

// ModelStore is the lifecycle controller's view of persistence. Writes are
// whole-document upserts; concurrent updates to the same model resolve last
// writer wins.
type ModelStore interface {
	// GetModel loads a model document. When excludeContent is set the
	// model_content and old_model_content fields are not fetched.
	GetModel(ctx context.Context, modelID string, excludeContent bool) (*mlmodel.Model, error)
	PutModel(ctx context.Context, m *mlmodel.Model, opts WriteOptions) error

	// GetModelGroup returns the group document together with its
	// concurrency token; PutModelGroup fails with ErrVersionConflict when
	// the token is stale.
	GetModelGroup(ctx context.Context, groupID string) (*mlmodel.ModelGroup, ConcurrencyToken, error)
	PutModelGroup(ctx context.Context, g *mlmodel.ModelGroup, token ConcurrencyToken, opts WriteOptions) error

	GetConnector(ctx context.Context, connectorID string) (*connector.Connector, error)
	PutConnector(ctx context.Context, connectorID string, c *connector.Connector) error
}

// AgentStore resolves agent documents for the agent executor.
type AgentStore interface {
	GetAgent(ctx context.Context, agentID string) (*agent.MLAgent, error)
	PutAgent(ctx context.Context, a *agent.MLAgent) error
}
