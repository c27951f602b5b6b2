package services

import (
	"context"
	"fmt"
	"strings"

	"accelo-slack-notifier/internal/config"
	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
	"accelo-slack-notifier/internal/ui"
)

const (
	requestMessageFields = "conversion_id,standing,type(),claimer,affiliation(contact(),company()),title,body"
	issueSummaryFields   = "assignee(),title,status(),standing,description"
)

// RequestMessage is a built request message. AutoClosed is set when the
// request matched the title denylist and was closed instead of rendered.
type RequestMessage struct {
	ui.Message
	AutoClosed bool
}

// RequestMessageService renders Accelo requests as Slack messages.
type RequestMessageService struct {
	config   *config.Config
	accelo   *AcceloClient
	mentions *Mentions
	builder  *ui.RequestMessageBuilder
}

func NewRequestMessageService(cfg *config.Config, accelo *AcceloClient, mentions *Mentions) *RequestMessageService {
	return &RequestMessageService{
		config:   cfg,
		accelo:   accelo,
		mentions: mentions,
		builder:  ui.NewRequestMessageBuilder(cfg.AcceloWebURL()),
	}
}

// BuildRequestMessage fetches the request and renders it. A title matching
// the denylist closes the request and yields a short notice for the
// denylist channel instead.
func (s *RequestMessageService) BuildRequestMessage(ctx context.Context, requestID string) (*RequestMessage, error) {
	if requestID == "" {
		return nil, models.ErrRequestIDRequired
	}
	ctx = log.WithFields(ctx, log.LogFields{"request_id": requestID})

	req, err := s.accelo.Requests.Get(ctx, requestID, requestMessageFields)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = models.ID(requestID)
	}

	if pattern, ok := s.matchDenylist(req.Title); ok {
		if _, err := s.accelo.Requests.Update(ctx, requestID, models.Object{"standing": models.StandingClosed}, "standing"); err != nil {
			return nil, fmt.Errorf("failed to auto-close request %s: %w", requestID, err)
		}
		log.Info(ctx, "Closed request matching title denylist", "pattern", pattern)
		return &RequestMessage{
			Message:    s.builder.BuildDenylisted(s.config.DenylistChannel, req, pattern),
			AutoClosed: true,
		}, nil
	}

	channel, ok := s.config.ChannelFor(req.TypeTitle())
	if !ok {
		log.Warn(ctx, "Request type has no mapped channel", "request_type", req.TypeTitle())
	}

	content := ui.RequestContent{
		Request:  req,
		Claimer:  s.claimer(ctx, req.Claimer),
		ShowBody: req.TypeTitle() == s.config.AlertRequestType,
	}

	if ui.NormalizeStanding(req.Standing) == "Converted" && !req.ConversionID.IsZero() {
		issue, err := s.accelo.Issues.Get(ctx, req.ConversionID.String(), issueSummaryFields)
		if err != nil {
			return nil, fmt.Errorf("failed to get issue for converted request %s: %w", requestID, err)
		}
		content.Issue = issue
		content.Assignee = s.assignee(ctx, issue.AssigneeID())
	}

	return &RequestMessage{Message: s.builder.BuildRequest(channel, content)}, nil
}

func (s *RequestMessageService) matchDenylist(title string) (string, bool) {
	for _, pattern := range s.config.TitleDenylist {
		if pattern != "" && strings.Contains(title, pattern) {
			return pattern, true
		}
	}
	return "", false
}

// claimer treats only the literal id 0 as unclaimed.
func (s *RequestMessageService) claimer(ctx context.Context, id models.ID) string {
	switch id {
	case "0":
		return "Unclaimed"
	case "":
		return "Unknown"
	}
	return s.mentions.Staff(ctx, id)
}

func (s *RequestMessageService) assignee(ctx context.Context, id models.ID) string {
	if id.IsZero() {
		return "Unassigned"
	}
	return s.mentions.Staff(ctx, id)
}
