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

// Package mlmodel defines the persistent model and model-group documents and
// the update-input patch exchanged with the lifecycle controller.
package mlmodel

import (
	"mlplane/platform/connector"
)

// Algorithm enumerates the model function categories the control plane knows.
type Algorithm string

const (
	AlgorithmTextEmbedding Algorithm = "TEXT_EMBEDDING"
	AlgorithmRemote        Algorithm = "REMOTE"
	AlgorithmKMeans        Algorithm = "KMEANS"
	AlgorithmAgent         Algorithm = "AGENT"
)

// ModelState tracks a model through its deployment lifecycle.
type ModelState string

const (
	StateRegistered        ModelState = "REGISTERED"
	StateDeploying         ModelState = "DEPLOYING"
	StateDeployed          ModelState = "DEPLOYED"
	StatePartiallyDeployed ModelState = "PARTIALLY_DEPLOYED"
	StateUndeployed        ModelState = "UNDEPLOYED"
	StateFailed            ModelState = "FAILED"
)

// ParseState resolves a stored state string, accepting the legacy aliases
// LOADING, LOADED, and PARTIALLY_LOADED.
func ParseState(s string) ModelState {
	switch s {
	case "LOADING":
		return StateDeploying
	case "LOADED":
		return StateDeployed
	case "PARTIALLY_LOADED":
		return StatePartiallyDeployed
	default:
		return ModelState(s)
	}
}

// IsDeployed reports whether the state serves inference from the node caches.
func (s ModelState) IsDeployed() bool {
	return s == StateDeployed || s == StatePartiallyDeployed
}

// IsDeploying reports whether a deploy is currently in flight.
func (s ModelState) IsDeploying() bool {
	return s == StateDeploying
}

// ModelConfig carries algorithm-specific configuration. The shape follows the
// text-embedding settings; remote models leave it nil.
type ModelConfig struct {
	ModelType          string `json:"model_type,omitempty"`
	EmbeddingDimension int    `json:"embedding_dimension,omitempty"`
	FrameworkType      string `json:"framework_type,omitempty"`
	AllConfig          string `json:"all_config,omitempty"`
}

// Model is the persistent model document. For a REMOTE model exactly one of
// Connector or ConnectorID is set at steady state; a TEXT_EMBEDDING model has
// neither. Content and OldContent are excluded from controller reads.
type Model struct {
	ModelID        string               `json:"model_id"`
	Name           string               `json:"name,omitempty"`
	Description    string               `json:"description,omitempty"`
	Version        string               `json:"model_version,omitempty"`
	ModelGroupID   string               `json:"model_group_id,omitempty"`
	Algorithm      Algorithm            `json:"algorithm"`
	State          ModelState           `json:"model_state,omitempty"`
	IsHidden       *bool                `json:"is_hidden,omitempty"`
	Config         *ModelConfig         `json:"model_config,omitempty"`
	Connector      *connector.Connector `json:"connector,omitempty"`
	ConnectorID    string               `json:"connector_id,omitempty"`
	Content        string               `json:"model_content,omitempty"`
	OldContent     string               `json:"old_model_content,omitempty"`
	LastUpdateTime int64                `json:"last_update_time,omitempty"`
}

// Hidden reports whether the model is hidden from non-admin callers.
func (m *Model) Hidden() bool {
	return m.IsHidden != nil && *m.IsHidden
}

// AccessMode governs who may act on a model group or connector.
type AccessMode string

const (
	AccessPublic     AccessMode = "public"
	AccessPrivate    AccessMode = "private"
	AccessRestricted AccessMode = "restricted"
)

// ModelGroup tracks a family of related models and the monotonically
// increasing latest_version counter new versions draw from.
type ModelGroup struct {
	ModelGroupID    string     `json:"model_group_id"`
	Name            string     `json:"name,omitempty"`
	Description     string     `json:"description,omitempty"`
	LatestVersion   int        `json:"latest_version"`
	Owner           string     `json:"owner,omitempty"`
	BackendRoles    []string   `json:"backend_roles,omitempty"`
	Access          AccessMode `json:"access,omitempty"`
	LastUpdatedTime int64      `json:"last_updated_time,omitempty"`
}
