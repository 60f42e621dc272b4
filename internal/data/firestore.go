package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/example/ragbot/internal/biz/domain"
	"github.com/example/ragbot/internal/biz/repo"
)

// FirestoreStore is a message store backed by Firestore. The claim runs
// inside a transaction, which gives the compare-and-swap on the lock
// fields; the change feed is a snapshot listener on the messages
// subcollection filtered by creation time.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore-backed store
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Close closes the underlying client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) messagesCol(channelID string) *firestore.CollectionRef {
	return s.client.Collection("messages").Doc(channelID).Collection("messages")
}

type messageDoc struct {
	Content             string     `firestore:"content"`
	UserID              string     `firestore:"userId"`
	UserName            string     `firestore:"userName"`
	CreatedAt           time.Time  `firestore:"createdAt,serverTimestamp"`
	IsBot               bool       `firestore:"isBot"`
	IsProcessing        bool       `firestore:"isProcessing"`
	IsProcessed         bool       `firestore:"isProcessed"`
	ProcessingStartedAt *time.Time `firestore:"processingStartedAt"`
	ProcessedAt         *time.Time `firestore:"processedAt"`
}

func (s *FirestoreStore) toDomain(id, channelID string, md *messageDoc) *domain.Message {
	return &domain.Message{
		ID:                  id,
		ChannelID:           channelID,
		Content:             md.Content,
		AuthorID:            md.UserID,
		AuthorName:          md.UserName,
		CreatedAt:           md.CreatedAt,
		IsBot:               md.IsBot,
		IsProcessing:        md.IsProcessing,
		IsProcessed:         md.IsProcessed,
		ProcessingStartedAt: md.ProcessingStartedAt,
		ProcessedAt:         md.ProcessedAt,
	}
}

// Append writes a new message; creation time is server-assigned
func (s *FirestoreStore) Append(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	md := messageDoc{
		Content:  msg.Content,
		UserID:   msg.AuthorID,
		UserName: msg.AuthorName,
		IsBot:    msg.IsBot,
	}

	ref := s.messagesCol(msg.ChannelID).NewDoc()
	if _, err := ref.Create(ctx, md); err != nil {
		return nil, fmt.Errorf("firestore Append: %w", err)
	}

	stored := *msg
	stored.ID = ref.ID
	return &stored, nil
}

// Get fetches one message by ID
func (s *FirestoreStore) Get(ctx context.Context, channelID, msgID string) (*domain.Message, error) {
	snap, err := s.messagesCol(channelID).Doc(msgID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore Get: %w", err)
	}

	var md messageDoc
	if err := snap.DataTo(&md); err != nil {
		return nil, fmt.Errorf("firestore Get decode: %w", err)
	}
	return s.toDomain(msgID, channelID, &md), nil
}

var errClaimLost = errors.New("claim lost")

// TryClaim atomically marks the message as processing inside a
// transaction
func (s *FirestoreStore) TryClaim(ctx context.Context, channelID, msgID string) (domain.ClaimResult, error) {
	ref := s.messagesCol(channelID).Doc(msgID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var md messageDoc
		if err := snap.DataTo(&md); err != nil {
			return err
		}
		if md.IsProcessing || md.IsProcessed {
			return errClaimLost
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "isProcessing", Value: true},
			{Path: "processingStartedAt", Value: firestore.ServerTimestamp},
		})
	})
	if errors.Is(err, errClaimLost) {
		return domain.AlreadyClaimed, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AlreadyClaimed, domain.ErrNotFound
	}
	if err != nil {
		return domain.AlreadyClaimed, fmt.Errorf("firestore TryClaim: %w", err)
	}
	return domain.Claimed, nil
}

// Complete marks a claimed message as processed. Already-processed
// messages are left untouched.
func (s *FirestoreStore) Complete(ctx context.Context, channelID, msgID string) error {
	ref := s.messagesCol(channelID).Doc(msgID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var md messageDoc
		if err := snap.DataTo(&md); err != nil {
			return err
		}
		if md.IsProcessed {
			return nil
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "isProcessing", Value: false},
			{Path: "isProcessed", Value: true},
			{Path: "processedAt", Value: firestore.ServerTimestamp},
		})
	})
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("firestore Complete: %w", err)
	}
	return nil
}

// ReclaimStale releases claims whose processing started before cutoff
func (s *FirestoreStore) ReclaimStale(ctx context.Context, channelID string, cutoff time.Time) (int64, error) {
	iter := s.messagesCol(channelID).
		Where("isProcessing", "==", true).
		Where("processingStartedAt", "<", cutoff).
		Documents(ctx)
	defer iter.Stop()

	var count int64
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return count, fmt.Errorf("firestore ReclaimStale: %w", err)
		}

		_, err = snap.Ref.Update(ctx, []firestore.Update{
			{Path: "isProcessing", Value: false},
			{Path: "processingStartedAt", Value: nil},
		})
		if err != nil {
			return count, fmt.Errorf("firestore ReclaimStale update: %w", err)
		}
		count++
	}
	return count, nil
}

// RecentHistory returns the most recent messages, oldest first
func (s *FirestoreStore) RecentHistory(ctx context.Context, channelID string, limit int) ([]domain.Message, error) {
	iter := s.messagesCol(channelID).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var msgs []domain.Message
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore RecentHistory: %w", err)
		}

		var md messageDoc
		if err := snap.DataTo(&md); err != nil {
			return nil, fmt.Errorf("firestore RecentHistory decode: %w", err)
		}
		msgs = append(msgs, *s.toDomain(snap.Ref.ID, channelID, &md))
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Subscribe starts a snapshot listener over messages created at or after
// the watermark
func (s *FirestoreStore) Subscribe(ctx context.Context, channelID string, watermark time.Time) (repo.Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &firestoreSub{
		ch:     make(chan domain.ChangeEvent, 256),
		cancel: cancel,
	}

	snapIter := s.messagesCol(channelID).
		Where("createdAt", ">=", watermark).
		OrderBy("createdAt", firestore.Asc).
		Snapshots(subCtx)

	go func() {
		defer close(sub.ch)
		defer snapIter.Stop()

		for {
			snap, err := snapIter.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					fmt.Printf("[FirestoreStore] Snapshot listener stopped: %v\n", err)
				}
				return
			}

			for _, change := range snap.Changes {
				var md messageDoc
				if err := change.Doc.DataTo(&md); err != nil {
					fmt.Printf("[FirestoreStore] Skipping undecodable document %s: %v\n", change.Doc.Ref.ID, err)
					continue
				}

				ev := domain.ChangeEvent{
					Type:    changeKind(change.Kind),
					Message: *s.toDomain(change.Doc.Ref.ID, channelID, &md),
				}
				select {
				case sub.ch <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return sub, nil
}

func changeKind(kind firestore.DocumentChangeKind) domain.EventType {
	switch kind {
	case firestore.DocumentAdded:
		return domain.EventAdded
	case firestore.DocumentModified:
		return domain.EventModified
	case firestore.DocumentRemoved:
		return domain.EventRemoved
	default:
		return domain.EventModified
	}
}

type firestoreSub struct {
	ch     chan domain.ChangeEvent
	cancel context.CancelFunc
}

func (sub *firestoreSub) Events() <-chan domain.ChangeEvent {
	return sub.ch
}

func (sub *firestoreSub) Unsubscribe() {
	sub.cancel()
}
