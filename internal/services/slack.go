// Package services provides the Accelo, Slack and Firestore integrations and
// the request workflows built on them.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"

	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
	"accelo-slack-notifier/internal/ui"
)

// SlackService wraps the Slack Web API calls this service makes.
type SlackService struct {
	client *slack.Client
}

func NewSlackService(client *slack.Client) *SlackService {
	return &SlackService{client: client}
}

// PostMessage posts msg to msg.Channel and returns where it landed.
func (s *SlackService) PostMessage(ctx context.Context, msg ui.Message) (models.MessageRef, error) {
	channel, timestamp, err := s.client.PostMessageContext(ctx, msg.Channel, msg.Options()...)
	if err != nil {
		log.Error(ctx, "Failed to post message to Slack",
			"error", err,
			"channel", msg.Channel,
			"operation", "post_message",
		)
		return models.MessageRef{}, fmt.Errorf("failed to post message to channel %s: %w", msg.Channel, err)
	}

	return models.MessageRef{Channel: channel, Timestamp: timestamp}, nil
}

// UpdateMessage replaces the message at ref with msg. msg.Channel is ignored.
func (s *SlackService) UpdateMessage(ctx context.Context, ref models.MessageRef, msg ui.Message) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	_, _, _, err := s.client.UpdateMessageContext(ctx, ref.Channel, ref.Timestamp, msg.Options()...)
	if err != nil {
		log.Error(ctx, "Failed to update Slack message",
			"error", err,
			"channel", ref.Channel,
			"message_timestamp", ref.Timestamp,
			"operation", "update_message",
		)
		return fmt.Errorf("failed to update message %s in channel %s: %w", ref.Timestamp, ref.Channel, err)
	}
	return nil
}

// DeleteMessage removes the message at ref. A message that is already gone
// counts as deleted.
func (s *SlackService) DeleteMessage(ctx context.Context, ref models.MessageRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	_, _, err := s.client.DeleteMessageContext(ctx, ref.Channel, ref.Timestamp)
	if err != nil {
		if slackErrorCode(err) == "message_not_found" {
			log.Info(ctx, "Slack message already deleted",
				"channel", ref.Channel,
				"message_timestamp", ref.Timestamp,
			)
			return nil
		}
		log.Error(ctx, "Failed to delete Slack message",
			"error", err,
			"channel", ref.Channel,
			"message_timestamp", ref.Timestamp,
			"operation", "delete_message",
		)
		return fmt.Errorf("failed to delete message %s in channel %s: %w", ref.Timestamp, ref.Channel, err)
	}
	return nil
}

// UnfurlLinks attaches previews, keyed by URL, to the message at ref in one
// call.
func (s *SlackService) UnfurlLinks(ctx context.Context, ref models.MessageRef, unfurls map[string]slack.Attachment) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	_, _, _, err := s.client.UnfurlMessageContext(ctx, ref.Channel, ref.Timestamp, unfurls)
	if err != nil {
		log.Error(ctx, "Failed to unfurl links",
			"error", err,
			"channel", ref.Channel,
			"message_timestamp", ref.Timestamp,
			"link_count", len(unfurls),
			"operation", "unfurl_links",
		)
		return fmt.Errorf("failed to unfurl %d links on message %s: %w", len(unfurls), ref.Timestamp, err)
	}
	return nil
}

// JoinChannel adds the bot to a public channel.
func (s *SlackService) JoinChannel(ctx context.Context, channel string) error {
	_, warning, _, err := s.client.JoinConversationContext(ctx, channel)
	if err != nil {
		log.Error(ctx, "Failed to join Slack channel",
			"error", err,
			"channel", channel,
			"operation", "join_channel",
		)
		return fmt.Errorf("failed to join channel %s: %w", channel, err)
	}
	if warning != "" {
		log.Warn(ctx, "Slack returned a warning joining channel",
			"channel", channel,
			"warning", warning,
		)
	}
	return nil
}

// LookupUserByEmail finds the Slack account registered with email. It
// returns models.ErrUserNotFound when there is none.
func (s *SlackService) LookupUserByEmail(ctx context.Context, email string) (*slack.User, error) {
	user, err := s.client.GetUserByEmailContext(ctx, email)
	if err != nil {
		if slackErrorCode(err) == "users_not_found" {
			return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, email)
		}
		log.Error(ctx, "Failed to look up Slack user by email",
			"error", err,
			"email", email,
			"operation", "lookup_user_by_email",
		)
		return nil, fmt.Errorf("failed to look up slack user %s: %w", email, err)
	}
	return user, nil
}

// ListUsers returns every member of the workspace.
func (s *SlackService) ListUsers(ctx context.Context) ([]slack.User, error) {
	users, err := s.client.GetUsersContext(ctx)
	if err != nil {
		log.Error(ctx, "Failed to list Slack users",
			"error", err,
			"operation", "list_users",
		)
		return nil, fmt.Errorf("failed to list slack users: %w", err)
	}
	return users, nil
}

// GetThreadReplies returns the parent message at ref followed by its replies.
func (s *SlackService) GetThreadReplies(ctx context.Context, ref models.MessageRef) ([]slack.Message, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	params := &slack.GetConversationRepliesParameters{
		ChannelID: ref.Channel,
		Timestamp: ref.Timestamp,
	}

	var all []slack.Message
	for {
		msgs, hasMore, cursor, err := s.client.GetConversationRepliesContext(ctx, params)
		if err != nil {
			log.Error(ctx, "Failed to get thread replies",
				"error", err,
				"channel", ref.Channel,
				"message_timestamp", ref.Timestamp,
				"operation", "get_thread_replies",
			)
			return nil, fmt.Errorf("failed to get replies of %s in channel %s: %w", ref.Timestamp, ref.Channel, err)
		}
		all = append(all, msgs...)
		if !hasMore || cursor == "" {
			break
		}
		params.Cursor = cursor
	}

	return all, nil
}

// slackErrorCode returns the Slack API error code carried by err, or "".
func slackErrorCode(err error) string {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err
	}
	return ""
}
