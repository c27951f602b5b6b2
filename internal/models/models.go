package models

import (
	"errors"
	"time"
)

var (
	ErrRemoteCallFailed    = errors.New("remote call failed")
	ErrMalformedResponse   = errors.New("malformed remote response")
	ErrRequestIDRequired   = errors.New("request ID is required")
	ErrSlackChannelMissing = errors.New("slack channel is required")
	ErrSlackMessageTSEmpty = errors.New("slack message timestamp is required")
	ErrMessageNotFound     = errors.New("tracked request message not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrAcceloIDRequired    = errors.New("accelo ID is required")
	ErrMissingLinkID       = errors.New("link carries no numeric id")
	ErrNoButtonAction      = errors.New("interaction carries no button action")
	ErrAccessTokenRequired = errors.New("access token is required")
	ErrTeamIDRequired      = errors.New("slack team ID is required")
)

// MessageRef locates a posted Slack message.
type MessageRef struct {
	Channel   string `firestore:"channel"    json:"channel"`
	Timestamp string `firestore:"message_ts" json:"ts"`
}

// Validate validates required fields for MessageRef.
func (r MessageRef) Validate() error {
	if r.Channel == "" {
		return ErrSlackChannelMissing
	}
	if r.Timestamp == "" {
		return ErrSlackMessageTSEmpty
	}
	return nil
}

// TrackedRequest associates an Accelo request with the Slack message that
// announces it, so status changes can update the message in place.
type TrackedRequest struct {
	RequestID string    `firestore:"request_id"`
	Channel   string    `firestore:"channel"`
	MessageTS string    `firestore:"message_ts"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Ref returns the message location of the tracked request.
func (t *TrackedRequest) Ref() MessageRef {
	return MessageRef{Channel: t.Channel, Timestamp: t.MessageTS}
}

// User links an Accelo staff member to their Slack account.
type User struct {
	AcceloID      string    `firestore:"accelo_id"`      // Accelo staff ID (document ID)
	SlackUserID   string    `firestore:"slack_user_id"`  // Slack user ID
	SlackUsername string    `firestore:"slack_username"` // Slack handle for debugging
	Email         string    `firestore:"email"`
	FirstName     string    `firestore:"first_name"`
	LastName      string    `firestore:"last_name"`
	UpdatedAt     time.Time `firestore:"updated_at"`
}

// FullName returns "First Last".
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// SlackWorkspace represents a Slack workspace installation with OAuth tokens.
type SlackWorkspace struct {
	ID          string    `firestore:"id"`           // Slack team ID (primary key)
	TeamName    string    `firestore:"team_name"`    // Workspace name
	AccessToken string    `firestore:"access_token"` // Bot token issued for this workspace
	Scope       string    `firestore:"scope"`        // Granted scopes
	InstalledBy string    `firestore:"installed_by"` // Slack user ID who installed the app
	AppID       string    `firestore:"app_id"`
	BotUserID   string    `firestore:"bot_user_id"`
	InstalledAt time.Time `firestore:"installed_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// Validate validates required fields for SlackWorkspace.
func (sw *SlackWorkspace) Validate() error {
	if sw.ID == "" {
		return ErrTeamIDRequired
	}
	if sw.AccessToken == "" {
		return ErrAccessTokenRequired
	}
	return nil
}
