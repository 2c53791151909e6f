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

// Package memory provides conversation-indexed agent memory: conversations
// hold an append-only list of interactions whose parent pointers form a tree
// of traces. Traversal is always upward, so only parent pointers are stored.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a conversation or interaction does not exist.
var ErrNotFound = errors.New("memory: not found")

// Conversation is the root document of one agent conversation.
type Conversation struct {
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	Name           string    `json:"name,omitempty" bson:"name,omitempty"`
	Application    string    `json:"application_type,omitempty" bson:"application_type,omitempty"`
	CreatedTime    time.Time `json:"create_time" bson:"create_time"`
}

// Interaction is a single exchange within a conversation. ParentID points at
// the interaction this one elaborates; a root interaction has none. TraceNum
// orders the tool-call traces hanging off one parent.
type Interaction struct {
	InteractionID  string            `json:"interaction_id" bson:"interaction_id"`
	ConversationID string            `json:"conversation_id" bson:"conversation_id"`
	Input          string            `json:"input,omitempty" bson:"input,omitempty"`
	PromptTemplate string            `json:"prompt_template,omitempty" bson:"prompt_template,omitempty"`
	Response       string            `json:"response,omitempty" bson:"response,omitempty"`
	Origin         string            `json:"origin,omitempty" bson:"origin,omitempty"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty" bson:"additional_info,omitempty"`
	ParentID       string            `json:"parent_interaction_id,omitempty" bson:"parent_interaction_id,omitempty"`
	TraceNum       int               `json:"trace_number,omitempty" bson:"trace_number,omitempty"`
	CreatedTime    time.Time         `json:"create_time" bson:"create_time"`
}

// Store persists conversations and interactions.
type Store interface {
	// CreateConversation starts a new conversation and returns its id.
	CreateConversation(ctx context.Context, name, application string) (string, error)

	// CreateInteraction appends an interaction to its conversation and
	// returns the assigned interaction id.
	CreateInteraction(ctx context.Context, in *Interaction) (string, error)

	// GetInteraction fetches one interaction by id.
	GetInteraction(ctx context.Context, interactionID string) (*Interaction, error)

	// ListInteractions walks upward from interactionID through parent
	// pointers, returning the chain ordered root first. maxSteps bounds the
	// walk; zero means no bound.
	ListInteractions(ctx context.Context, interactionID string, maxSteps int) ([]*Interaction, error)
}
