package services

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
)

// RequestService runs the request message lifecycle: announce, update in
// place, and the button actions.
type RequestService struct {
	accelo      *AcceloClient
	slack       *SlackService
	messages    *RequestMessageService
	store       MessageStore
	users       UserDirectory
	settleDelay time.Duration
}

func NewRequestService(
	accelo *AcceloClient,
	slackService *SlackService,
	messages *RequestMessageService,
	store MessageStore,
	users UserDirectory,
	settleDelay time.Duration,
) *RequestService {
	return &RequestService{
		accelo:      accelo,
		slack:       slackService,
		messages:    messages,
		store:       store,
		users:       users,
		settleDelay: settleDelay,
	}
}

// SendNewRequest posts the message for a new request and remembers where it
// went. Auto-closed notices are posted but not tracked.
func (s *RequestService) SendNewRequest(ctx context.Context, requestID string) error {
	msg, err := s.messages.BuildRequestMessage(ctx, requestID)
	if err != nil {
		return err
	}

	ref, err := s.slack.PostMessage(ctx, msg.Message)
	if err != nil {
		return err
	}
	if msg.AutoClosed {
		return nil
	}

	if err := s.store.SaveRequestMessage(ctx, requestID, ref); err != nil {
		return err
	}

	log.Info(ctx, "Posted request message",
		"request_id", requestID,
		"channel", ref.Channel,
		"message_ts", ref.Timestamp,
	)
	return nil
}

// HandleStatusChange waits for Accelo to settle, then updates the request
// message in place.
func (s *RequestService) HandleStatusChange(ctx context.Context, requestID string) error {
	if s.settleDelay > 0 {
		timer := time.NewTimer(s.settleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("status change for request %s abandoned: %w", requestID, ctx.Err())
		case <-timer.C:
		}
	}
	return s.UpdateRequest(ctx, requestID)
}

// UpdateRequest re-renders the stored message of a request. A request with
// no stored message is logged and skipped.
func (s *RequestService) UpdateRequest(ctx context.Context, requestID string) error {
	tracked, err := s.store.GetRequestMessage(ctx, requestID)
	if err != nil {
		return err
	}
	if tracked == nil {
		log.Warn(ctx, "No message stored for request, skipping update", "request_id", requestID)
		return nil
	}

	msg, err := s.messages.BuildRequestMessage(ctx, requestID)
	if err != nil {
		return err
	}
	return s.slack.UpdateMessage(ctx, tracked.Ref(), msg.Message)
}

// HandleButton runs the action of a clicked request button.
func (s *RequestService) HandleButton(ctx context.Context, click models.ButtonClick) error {
	if click.RequestID == "" {
		return models.ErrRequestIDRequired
	}
	ctx = log.WithFields(ctx, log.LogFields{
		"request_id":    click.RequestID,
		"button":        click.Action.String(),
		"slack_user_id": click.SlackUserID,
	})

	switch click.Action {
	case models.ButtonClaim:
		return s.ClaimRequest(ctx, click)
	case models.ButtonClose:
		return s.CloseRequest(ctx, click)
	case models.ButtonReopen:
		return s.ReopenRequest(ctx, click)
	case models.ButtonRefresh:
		return s.RefreshRequest(ctx, click)
	case models.ButtonUnknown:
		return models.ErrNoButtonAction
	}
	return models.ErrNoButtonAction
}

// ClaimRequest assigns the request to the Accelo staff member linked to the
// clicking Slack user and opens it.
func (s *RequestService) ClaimRequest(ctx context.Context, click models.ButtonClick) error {
	user, err := s.users.GetUserBySlackID(ctx, click.SlackUserID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: slack user %s is not linked to Accelo staff", models.ErrUserNotFound, click.SlackUserID)
	}

	update := models.Object{"claimer_id": user.AcceloID, "standing": models.StandingOpen}
	if _, err := s.accelo.Requests.Update(ctx, click.RequestID, update, "claimer,standing"); err != nil {
		return err
	}
	return s.RefreshRequest(ctx, click)
}

func (s *RequestService) CloseRequest(ctx context.Context, click models.ButtonClick) error {
	return s.setStanding(ctx, click, models.StandingClosed)
}

func (s *RequestService) ReopenRequest(ctx context.Context, click models.ButtonClick) error {
	return s.setStanding(ctx, click, models.StandingOpen)
}

// RefreshRequest re-renders the message the button lives in and tracks it.
func (s *RequestService) RefreshRequest(ctx context.Context, click models.ButtonClick) error {
	msg, err := s.messages.BuildRequestMessage(ctx, click.RequestID)
	if err != nil {
		return err
	}
	if err := s.slack.UpdateMessage(ctx, click.Message, msg.Message); err != nil {
		return err
	}
	return s.store.SaveRequestMessage(ctx, click.RequestID, click.Message)
}

func (s *RequestService) setStanding(ctx context.Context, click models.ButtonClick, standing string) error {
	if _, err := s.accelo.Requests.Update(ctx, click.RequestID, models.Object{"standing": standing}, "standing"); err != nil {
		return err
	}
	return s.RefreshRequest(ctx, click)
}

// DeleteRequestMessage removes the tracked message of a request from Slack
// and forgets it.
func (s *RequestService) DeleteRequestMessage(ctx context.Context, requestID string) error {
	tracked, err := s.store.GetRequestMessage(ctx, requestID)
	if err != nil {
		return err
	}
	if tracked == nil {
		return fmt.Errorf("%w: request %s", models.ErrMessageNotFound, requestID)
	}

	if err := s.slack.DeleteMessage(ctx, tracked.Ref()); err != nil {
		return err
	}
	return s.store.DeleteRequestMessage(ctx, requestID)
}

// RequestThread returns the tracked message of a request and its replies.
func (s *RequestService) RequestThread(ctx context.Context, requestID string) ([]slack.Message, error) {
	tracked, err := s.store.GetRequestMessage(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if tracked == nil {
		return nil, fmt.Errorf("%w: request %s", models.ErrMessageNotFound, requestID)
	}
	return s.slack.GetThreadReplies(ctx, tracked.Ref())
}
