package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/conversai-app/conversai/pkg/core/types"
)

const (
	conversationsCollection = "conversations"
	agentsCollection        = "agents"
)

// Mongo implements ConversationStore and AgentStore on a MongoDB database.
// Document ids are ObjectID hex strings.
type Mongo struct {
	conversations *mongo.Collection
	agents        *mongo.Collection
}

// NewMongo creates stores on the given database.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		conversations: db.Collection(conversationsCollection),
		agents:        db.Collection(agentsCollection),
	}
}

// Ping verifies the backing database is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.conversations.Database().Client().Ping(ctx, nil)
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return client, nil
}

func (m *Mongo) Insert(ctx context.Context, c *types.Conversation) error {
	if c.ID == "" {
		c.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.conversations.InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (m *Mongo) FindByID(ctx context.Context, id string) (*types.Conversation, error) {
	var c types.Conversation
	err := m.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return &c, nil
}

func (m *Mongo) Find(ctx context.Context, f ConversationFilter) ([]*types.Conversation, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.AgentID != "" {
		filter["agentId"] = f.AgentID
	}
	opts := options.Find().SetSort(bson.D{{Key: "metadata.created", Value: -1}})
	cursor, err := m.conversations.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*types.Conversation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}
	return out, nil
}

func (m *Mongo) Replace(ctx context.Context, c *types.Conversation) error {
	res, err := m.conversations.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return fmt.Errorf("replace conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, id string) (*types.Conversation, error) {
	var c types.Conversation
	err := m.conversations.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete conversation: %w", err)
	}
	return &c, nil
}

func (m *Mongo) InsertAgent(ctx context.Context, a *types.Agent) error {
	if a.ID == "" {
		a.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.agents.InsertOne(ctx, a); err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

func (m *Mongo) FindAgentByID(ctx context.Context, id, userID string) (*types.Agent, error) {
	var a types.Agent
	err := m.agents.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find agent: %w", err)
	}
	return &a, nil
}

func (m *Mongo) FindAgentsByUser(ctx context.Context, userID string) ([]*types.Agent, error) {
	cursor, err := m.agents.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*types.Agent
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	return out, nil
}

func (m *Mongo) UpdateAgent(ctx context.Context, a *types.Agent) error {
	res, err := m.agents.ReplaceOne(ctx, bson.M{"_id": a.ID, "userId": a.UserID}, a)
	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteAgent(ctx context.Context, id, userID string) error {
	res, err := m.agents.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Conversations returns the conversation store view.
func (m *Mongo) Conversations() ConversationStore { return m }

// Agents returns the agent store view.
func (m *Mongo) Agents() AgentStore { return mongoAgents{m} }

// mongoAgents adapts the agent methods onto the AgentStore interface without
// colliding with the conversation method set.
type mongoAgents struct{ m *Mongo }

func (s mongoAgents) Insert(ctx context.Context, a *types.Agent) error { return s.m.InsertAgent(ctx, a) }
func (s mongoAgents) FindByID(ctx context.Context, id, userID string) (*types.Agent, error) {
	return s.m.FindAgentByID(ctx, id, userID)
}
func (s mongoAgents) FindByUser(ctx context.Context, userID string) ([]*types.Agent, error) {
	return s.m.FindAgentsByUser(ctx, userID)
}
func (s mongoAgents) Update(ctx context.Context, a *types.Agent) error { return s.m.UpdateAgent(ctx, a) }
func (s mongoAgents) Delete(ctx context.Context, id, userID string) error {
	return s.m.DeleteAgent(ctx, id, userID)
}
