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

package memory

import (
	"context"
)

// TypeConversationIndex is the built-in memory type.
const TypeConversationIndex = "conversation_index"

// ConversationMemory binds a Store to one conversation and is what agent
// runners hold during a run.
type ConversationMemory struct {
	store          Store
	conversationID string
}

// ConversationID returns the bound conversation.
func (m *ConversationMemory) ConversationID() string {
	return m.conversationID
}

// Save appends an interaction to the bound conversation and returns its id.
func (m *ConversationMemory) Save(ctx context.Context, in *Interaction) (string, error) {
	doc := *in
	doc.ConversationID = m.conversationID
	return m.store.CreateInteraction(ctx, &doc)
}

// History walks upward from interactionID, root first.
func (m *ConversationMemory) History(ctx context.Context, interactionID string, maxSteps int) ([]*Interaction, error) {
	return m.store.ListInteractions(ctx, interactionID, maxSteps)
}

// Factory acquires or creates a conversation and returns memory bound to it.
// An empty conversationID starts a new conversation.
type Factory interface {
	Create(ctx context.Context, conversationID, name, application string) (*ConversationMemory, error)
}

// StoreFactory is the standard Factory over a Store.
type StoreFactory struct {
	store Store
}

// NewStoreFactory builds a factory over s.
func NewStoreFactory(s Store) *StoreFactory {
	return &StoreFactory{store: s}
}

func (f *StoreFactory) Create(ctx context.Context, conversationID, name, application string) (*ConversationMemory, error) {
	if conversationID == "" {
		id, err := f.store.CreateConversation(ctx, name, application)
		if err != nil {
			return nil, err
		}
		conversationID = id
	}
	return &ConversationMemory{store: f.store, conversationID: conversationID}, nil
}

