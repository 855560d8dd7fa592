package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainchat "studenthelper/internal/domain/chat"
)

// MessageStore persists devserver messages in MongoDB. Numeric ids come
// from a counters collection so they stay compatible with the wire
// contract's integer message ids.
type MessageStore struct {
	messages *mongo.Collection
	counters *mongo.Collection
}

func NewMessageStore(c *Client) *MessageStore {
	return &MessageStore{
		messages: c.DB.Collection("messages"),
		counters: c.DB.Collection("counters"),
	}
}

type messageDoc struct {
	ID           int64       `bson:"_id"`
	SenderID     string      `bson:"sender_id"`
	SenderName   string      `bson:"sender_name"`
	ReceiverID   string      `bson:"receiver_id"`
	ReceiverName string      `bson:"receiver_name"`
	Content      string      `bson:"content"`
	CreatedAt    time.Time   `bson:"created_at"`
	Read         bool        `bson:"read"`
	Related      *relatedDoc `bson:"related,omitempty"`
}

type relatedDoc struct {
	Type string `bson:"type"`
	ID   string `bson:"id"`
}

func (s *MessageStore) Append(ctx context.Context, msg domainchat.StoredMessage) (domainchat.StoredMessage, error) {
	id, err := s.nextSequence(ctx, "messages")
	if err != nil {
		return domainchat.StoredMessage{}, err
	}
	msg.ID = id
	if _, err := s.messages.InsertOne(ctx, toDoc(msg)); err != nil {
		return domainchat.StoredMessage{}, fmt.Errorf("mongo: insert message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) Between(ctx context.Context, userA, userB string) ([]domainchat.StoredMessage, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userA, "receiver_id": userB},
		bson.M{"sender_id": userB, "receiver_id": userA},
	}}
	cursor, err := s.messages.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongo: find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var out []domainchat.StoredMessage
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode message: %w", err)
		}
		out = append(out, fromDoc(doc))
	}
	return out, cursor.Err()
}

func (s *MessageStore) MarkRead(ctx context.Context, readerID, senderID string) error {
	filter := bson.M{"receiver_id": readerID, "sender_id": senderID, "read": false}
	_, err := s.messages.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("mongo: mark read: %w", err)
	}
	return nil
}

func (s *MessageStore) Delete(ctx context.Context, id int64, senderID string) error {
	var doc messageDoc
	err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domainchat.ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("mongo: load message: %w", err)
	}
	if doc.SenderID != senderID {
		return domainchat.ErrNotMessageOwner
	}
	if _, err := s.messages.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("mongo: delete message: %w", err)
	}
	return nil
}

func (s *MessageStore) ConversationsFor(ctx context.Context, userID string) ([]domainchat.ConversationSummary, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID},
		bson.M{"receiver_id": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: find conversations: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := make(map[string]*domainchat.ConversationSummary)
	var order []string
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo: decode message: %w", err)
		}
		msg := fromDoc(doc)
		otherID, otherName := msg.SenderID, msg.SenderName
		if msg.SenderID == userID {
			otherID, otherName = msg.ReceiverID, msg.ReceiverName
		}
		summary, ok := summaries[otherID]
		if !ok {
			summary = &domainchat.ConversationSummary{UserID: otherID, UserName: otherName}
			summaries[otherID] = summary
			order = append(order, otherID)
		}
		summary.LastMessage = msg.Content
		summary.LastMessageAt = msg.CreatedAt
		if msg.Related != nil {
			related := *msg.Related
			summary.Related = &related
		}
		if msg.ReceiverID == userID && !msg.Read {
			summary.Unread++
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	out := make([]domainchat.ConversationSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *summaries[id])
	}
	// Newest thread first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *MessageStore) nextSequence(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("mongo: next sequence %s: %w", name, err)
	}
	return counter.Value, nil
}

func toDoc(msg domainchat.StoredMessage) messageDoc {
	doc := messageDoc{
		ID:           msg.ID,
		SenderID:     msg.SenderID,
		SenderName:   msg.SenderName,
		ReceiverID:   msg.ReceiverID,
		ReceiverName: msg.ReceiverName,
		Content:      msg.Content,
		CreatedAt:    msg.CreatedAt,
		Read:         msg.Read,
	}
	if msg.Related != nil {
		doc.Related = &relatedDoc{Type: string(msg.Related.Type), ID: msg.Related.ID}
	}
	return doc
}

func fromDoc(doc messageDoc) domainchat.StoredMessage {
	msg := domainchat.StoredMessage{
		ID:           doc.ID,
		SenderID:     doc.SenderID,
		SenderName:   doc.SenderName,
		ReceiverID:   doc.ReceiverID,
		ReceiverName: doc.ReceiverName,
		Content:      doc.Content,
		CreatedAt:    doc.CreatedAt,
		Read:         doc.Read,
	}
	if doc.Related != nil {
		msg.Related = &domainchat.RelatedEntity{
			Type: domainchat.RelatedType(doc.Related.Type),
			ID:   doc.Related.ID,
		}
	}
	return msg
}

var _ domainchat.MessageStore = (*MessageStore)(nil)
