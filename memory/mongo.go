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
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	conversationsCollection = "ml_conversations"
	interactionsCollection  = "ml_interactions"

	mongoConnectTimeout = 10 * time.Second
)

// MongoStore persists conversation memory in two MongoDB collections, one for
// conversation roots and one for interactions.
type MongoStore struct {
	conversations *mongo.Collection
	interactions  *mongo.Collection
	now           func() time.Time
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB and binds the memory collections.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	clientOpts := options.Client().ApplyURI(uri)
	clientOpts.SetConnectTimeout(mongoConnectTimeout)
	clientOpts.SetRetryWrites(true)
	clientOpts.SetRetryReads(true)

	connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	return &MongoStore{
		conversations: db.Collection(conversationsCollection),
		interactions:  db.Collection(interactionsCollection),
		now:           time.Now,
	}, nil
}

// EnsureIndexes creates the lookup indexes the store queries by.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to index conversations: %w", err)
	}
	_, err = s.interactions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "interaction_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to index interactions: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateConversation(ctx context.Context, name, application string) (string, error) {
	conv := &Conversation{
		ConversationID: uuid.NewString(),
		Name:           name,
		Application:    application,
		CreatedTime:    s.now().UTC(),
	}
	if _, err := s.conversations.InsertOne(ctx, conv); err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv.ConversationID, nil
}

func (s *MongoStore) CreateInteraction(ctx context.Context, in *Interaction) (string, error) {
	if in.ConversationID == "" {
		return "", errors.New("interaction requires a conversation id")
	}

	// conversation must exist before anything hangs off it
	err := s.conversations.FindOne(ctx, bson.M{"conversation_id": in.ConversationID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", fmt.Errorf("conversation %s: %w", in.ConversationID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load conversation %s: %w", in.ConversationID, err)
	}

	doc := *in
	doc.InteractionID = uuid.NewString()
	doc.CreatedTime = s.now().UTC()
	if _, err := s.interactions.InsertOne(ctx, &doc); err != nil {
		return "", fmt.Errorf("failed to create interaction: %w", err)
	}
	return doc.InteractionID, nil
}

func (s *MongoStore) GetInteraction(ctx context.Context, interactionID string) (*Interaction, error) {
	var in Interaction
	err := s.interactions.FindOne(ctx, bson.M{"interaction_id": interactionID}).Decode(&in)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("interaction %s: %w", interactionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load interaction %s: %w", interactionID, err)
	}
	return &in, nil
}

func (s *MongoStore) ListInteractions(ctx context.Context, interactionID string, maxSteps int) ([]*Interaction, error) {
	return walkUp(ctx, s, interactionID, maxSteps)
}

// walkUp follows parent pointers from interactionID to the root, shared by
// every Store implementation. The result is ordered root first.
func walkUp(ctx context.Context, s Store, interactionID string, maxSteps int) ([]*Interaction, error) {
	var chain []*Interaction
	seen := make(map[string]bool)
	id := interactionID
	for id != "" {
		if seen[id] {
			return nil, fmt.Errorf("interaction %s appears twice in its own ancestry", id)
		}
		seen[id] = true

		in, err := s.GetInteraction(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, in)
		if maxSteps > 0 && len(chain) >= maxSteps {
			break
		}
		id = in.ParentID
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
