package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
)

const (
	requestMessagesCollection = "request_messages"
	usersCollection           = "users"
)

// StoreCollections lists every collection this service writes to.
var StoreCollections = []string{requestMessagesCollection, usersCollection, slackWorkspacesCollection}

// MessageStore remembers which Slack message announces which request.
// Get returns nil, nil when nothing is stored.
type MessageStore interface {
	GetRequestMessage(ctx context.Context, requestID string) (*models.TrackedRequest, error)
	SaveRequestMessage(ctx context.Context, requestID string, ref models.MessageRef) error
	DeleteRequestMessage(ctx context.Context, requestID string) error
}

// UserDirectory maps Accelo staff onto Slack users. Lookups return nil, nil
// when there is no match.
type UserDirectory interface {
	GetUserByAcceloID(ctx context.Context, acceloID string) (*models.User, error)
	GetUserBySlackID(ctx context.Context, slackUserID string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// FirestoreService provides database operations for Firestore.
type FirestoreService struct {
	client *firestore.Client
}

// NewFirestoreService creates a new FirestoreService with the provided client.
func NewFirestoreService(client *firestore.Client) *FirestoreService {
	return &FirestoreService{client: client}
}

// GetRequestMessage returns the message stored for requestID.
func (fs *FirestoreService) GetRequestMessage(ctx context.Context, requestID string) (*models.TrackedRequest, error) {
	if requestID == "" {
		return nil, models.ErrRequestIDRequired
	}

	doc, err := fs.client.Collection(requestMessagesCollection).Doc(requestID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		log.Error(ctx, "Failed to get request message",
			"error", err,
			"request_id", requestID,
			"operation", "get_request_message",
		)
		return nil, fmt.Errorf("failed to get message for request %s: %w", requestID, err)
	}

	var tracked models.TrackedRequest
	if err := doc.DataTo(&tracked); err != nil {
		log.Error(ctx, "Failed to unmarshal request message",
			"error", err,
			"request_id", requestID,
			"operation", "unmarshal_request_message",
		)
		return nil, fmt.Errorf("failed to unmarshal message for request %s: %w", requestID, err)
	}

	return &tracked, nil
}

// SaveRequestMessage stores or replaces the message location of requestID.
// The original creation time survives replacement.
func (fs *FirestoreService) SaveRequestMessage(ctx context.Context, requestID string, ref models.MessageRef) error {
	if requestID == "" {
		return models.ErrRequestIDRequired
	}
	if err := ref.Validate(); err != nil {
		return fmt.Errorf("invalid message for request %s: %w", requestID, err)
	}

	docRef := fs.client.Collection(requestMessagesCollection).Doc(requestID)
	err := fs.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := time.Now()
		tracked := models.TrackedRequest{
			RequestID: requestID,
			Channel:   ref.Channel,
			MessageTS: ref.Timestamp,
			CreatedAt: now,
			UpdatedAt: now,
		}

		doc, err := tx.Get(docRef)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			var existing models.TrackedRequest
			if err := doc.DataTo(&existing); err == nil && !existing.CreatedAt.IsZero() {
				tracked.CreatedAt = existing.CreatedAt
			}
		}

		return tx.Set(docRef, &tracked)
	})
	if err != nil {
		log.Error(ctx, "Failed to save request message",
			"error", err,
			"request_id", requestID,
			"slack_channel", ref.Channel,
			"slack_ts", ref.Timestamp,
			"operation", "save_request_message",
		)
		return fmt.Errorf("failed to save message for request %s: %w", requestID, err)
	}
	return nil
}

// DeleteRequestMessage forgets the message of requestID. Deleting an absent
// entry is not an error.
func (fs *FirestoreService) DeleteRequestMessage(ctx context.Context, requestID string) error {
	if requestID == "" {
		return models.ErrRequestIDRequired
	}

	_, err := fs.client.Collection(requestMessagesCollection).Doc(requestID).Delete(ctx)
	if err != nil {
		log.Error(ctx, "Failed to delete request message",
			"error", err,
			"request_id", requestID,
			"operation", "delete_request_message",
		)
		return fmt.Errorf("failed to delete message for request %s: %w", requestID, err)
	}
	return nil
}

// GetUserByAcceloID retrieves a user by their Accelo staff ID.
func (fs *FirestoreService) GetUserByAcceloID(ctx context.Context, acceloID string) (*models.User, error) {
	doc, err := fs.client.Collection(usersCollection).Doc(acceloID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		log.Error(ctx, "Failed to get user by Accelo ID",
			"error", err,
			"accelo_id", acceloID,
			"operation", "get_user_by_accelo_id",
		)
		return nil, fmt.Errorf("failed to get user by accelo ID %s: %w", acceloID, err)
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		log.Error(ctx, "Failed to unmarshal user data by Accelo ID",
			"error", err,
			"accelo_id", acceloID,
			"operation", "unmarshal_user_data",
		)
		return nil, fmt.Errorf("failed to unmarshal user data for accelo ID %s: %w", acceloID, err)
	}

	return &user, nil
}

// GetUserBySlackID retrieves a user by their Slack user ID.
func (fs *FirestoreService) GetUserBySlackID(ctx context.Context, slackUserID string) (*models.User, error) {
	iter := fs.client.Collection(usersCollection).Where("slack_user_id", "==", slackUserID).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, nil
		}
		log.Error(ctx, "Failed to query user by Slack ID",
			"error", err,
			"slack_user_id", slackUserID,
			"operation", "query_user_by_slack_id",
		)
		return nil, fmt.Errorf("failed to query user by slack ID %s: %w", slackUserID, err)
	}

	var user models.User
	if err := doc.DataTo(&user); err != nil {
		log.Error(ctx, "Failed to unmarshal user data by Slack ID",
			"error", err,
			"slack_user_id", slackUserID,
			"operation", "unmarshal_user_data",
		)
		return nil, fmt.Errorf("failed to unmarshal user data for slack ID %s: %w", slackUserID, err)
	}

	return &user, nil
}

// SaveUser creates or replaces a user keyed by Accelo staff ID.
func (fs *FirestoreService) SaveUser(ctx context.Context, user *models.User) error {
	if user.AcceloID == "" {
		return models.ErrAcceloIDRequired
	}
	user.UpdatedAt = time.Now()

	_, err := fs.client.Collection(usersCollection).Doc(user.AcceloID).Set(ctx, user)
	if err != nil {
		log.Error(ctx, "Failed to save user",
			"error", err,
			"accelo_id", user.AcceloID,
			"slack_user_id", user.SlackUserID,
			"operation", "save_user",
		)
		return fmt.Errorf("failed to save user %s: %w", user.AcceloID, err)
	}
	return nil
}

// ListUsers returns every synced user.
func (fs *FirestoreService) ListUsers(ctx context.Context) ([]*models.User, error) {
	iter := fs.client.Collection(usersCollection).Documents(ctx)
	defer iter.Stop()

	var users []*models.User
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			log.Error(ctx, "Failed to iterate users",
				"error", err,
				"operation", "list_users",
			)
			return nil, fmt.Errorf("failed to iterate users: %w", err)
		}

		var user models.User
		if err := doc.DataTo(&user); err != nil {
			log.Error(ctx, "Failed to decode user",
				"error", err,
				"doc_id", doc.Ref.ID,
				"operation", "decode_user_list",
			)
			continue
		}
		users = append(users, &user)
	}

	return users, nil
}
