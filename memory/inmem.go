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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps conversation memory in process. Suitable for tests and
// single-node deployments without a MongoDB.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	interactions  map[string]*Interaction
	now           func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore builds an empty in-process store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*Conversation),
		interactions:  make(map[string]*Interaction),
		now:           time.Now,
	}
}

func (s *InMemoryStore) CreateConversation(_ context.Context, name, application string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &Conversation{
		ConversationID: uuid.NewString(),
		Name:           name,
		Application:    application,
		CreatedTime:    s.now().UTC(),
	}
	s.conversations[conv.ConversationID] = conv
	return conv.ConversationID, nil
}

func (s *InMemoryStore) CreateInteraction(_ context.Context, in *Interaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[in.ConversationID]; !ok {
		return "", fmt.Errorf("conversation %s: %w", in.ConversationID, ErrNotFound)
	}
	doc := *in
	doc.InteractionID = uuid.NewString()
	doc.CreatedTime = s.now().UTC()
	s.interactions[doc.InteractionID] = &doc
	return doc.InteractionID, nil
}

func (s *InMemoryStore) GetInteraction(_ context.Context, interactionID string) (*Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.interactions[interactionID]
	if !ok {
		return nil, fmt.Errorf("interaction %s: %w", interactionID, ErrNotFound)
	}
	cp := *in
	return &cp, nil
}

func (s *InMemoryStore) ListInteractions(ctx context.Context, interactionID string, maxSteps int) ([]*Interaction, error) {
	return walkUp(ctx, s, interactionID, maxSteps)
}
