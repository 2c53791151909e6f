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

// Package agent executes ML agents: deterministic flow pipelines and
// conversational ReAct loops over a pluggable tool registry and a
// conversation memory store.
package agent

// Agent types.
const (
	TypeFlow           = "flow"
	TypeConversational = "conversational"
)

// ToolSpec names a registered tool and its static configuration.
type ToolSpec struct {
	Type        string            `json:"type"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	// IncludeOutputInResponse marks a flow step whose output is returned to
	// the caller instead of only feeding the next step.
	IncludeOutputInResponse bool `json:"include_output_in_agent_response,omitempty"`
}

// MemorySpec declares the conversation memory an agent uses.
type MemorySpec struct {
	Type string `json:"type"`
}

// LLMSpec points a conversational agent at the model that drives its
// reasoning loop.
type LLMSpec struct {
	ModelID    string            `json:"model_id"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// MLAgent is the persisted agent document.
type MLAgent struct {
	AgentID        string            `json:"agent_id,omitempty"`
	Name           string            `json:"name"`
	Type           string            `json:"type"`
	Description    string            `json:"description,omitempty"`
	LLM            *LLMSpec          `json:"llm,omitempty"`
	Tools          []ToolSpec        `json:"tools,omitempty"`
	Parameters     map[string]string `json:"parameters,omitempty"`
	Memory         *MemorySpec       `json:"memory,omitempty"`
	CreatedTime    int64             `json:"created_time,omitempty"`
	LastUpdateTime int64             `json:"last_updated_time,omitempty"`
}
