package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
)

// RequestNotifier posts and maintains the Slack messages announcing Accelo requests.
type RequestNotifier interface {
	SendNewRequest(ctx context.Context, requestID string) error
	HandleStatusChange(ctx context.Context, requestID string) error
	HandleButton(ctx context.Context, click models.ButtonClick) error
}

// LinkUnfurler previews Accelo links shared in Slack.
type LinkUnfurler interface {
	Unfurl(ctx context.Context, ref models.MessageRef, links []string) error
}

// WebhookHandler is the single inbound entry point for Accelo and Slack callbacks.
type WebhookHandler struct {
	requests RequestNotifier
	unfurler LinkUnfurler
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(requests RequestNotifier, unfurler LinkUnfurler) *WebhookHandler {
	return &WebhookHandler{
		requests: requests,
		unfurler: unfurler,
	}
}

// acceloWebhook is the body Accelo sends for request webhooks.
type acceloWebhook struct {
	ID models.ID `json:"id"`
}

// HandleWebhook classifies the call by its app and type query parameters and
// runs the matching operation to completion. Failures are logged, never
// returned: every path answers 200 with an empty JSON object, except the
// Slack url_verification handshake.
// POST /webhook?token=<secret>&app=<accelo|slack>&type=<event>.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	kind := models.ClassifyEvent(c.Query("app"), c.Query("type"))
	ctx := log.WithFields(c.Request.Context(), log.LogFields{
		"handler": "webhook",
		"event":   kind.String(),
	})

	switch kind {
	case models.EventRequestCreated, models.EventRequestStatusChanged:
		h.handleAccelo(ctx, c, kind)
	case models.EventSlackInteraction:
		h.handleInteraction(ctx, c)
	case models.EventSlackEvent:
		if h.handleEvent(ctx, c) {
			return
		}
	case models.EventUnknown:
		log.Debug(ctx, "Ignoring unrecognised webhook",
			"app", c.Query("app"),
			"type", c.Query("type"),
		)
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (h *WebhookHandler) handleAccelo(ctx context.Context, c *gin.Context, kind models.EventKind) {
	var body acceloWebhook
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Error(ctx, "Failed to parse Accelo webhook body", "error", err)
		return
	}

	requestID := body.ID.String()
	ctx = log.WithFields(ctx, log.LogFields{"request_id": requestID})

	var err error
	if kind == models.EventRequestCreated {
		err = h.requests.SendNewRequest(ctx, requestID)
	} else {
		err = h.requests.HandleStatusChange(ctx, requestID)
	}
	if err != nil {
		log.Error(ctx, "Failed to handle Accelo request webhook",
			"error", err,
			"operation", kind.String(),
		)
		return
	}
	log.Info(ctx, "Handled Accelo request webhook")
}

func (h *WebhookHandler) handleInteraction(ctx context.Context, c *gin.Context) {
	raw := c.PostForm("payload")
	if raw == "" {
		log.Warn(ctx, "Slack interaction without payload")
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &callback); err != nil {
		log.Error(ctx, "Failed to parse Slack interaction payload", "error", err)
		return
	}

	click, err := buttonClick(&callback)
	if err != nil {
		log.Warn(ctx, "Ignoring Slack interaction", "error", err, "interaction_type", callback.Type)
		return
	}

	ctx = log.WithFields(ctx, log.LogFields{
		"request_id":    click.RequestID,
		"button":        click.Action.String(),
		"slack_user_id": click.SlackUserID,
		"slack_channel": click.Message.Channel,
	})

	if err := h.requests.HandleButton(ctx, click); err != nil {
		log.Error(ctx, "Failed to handle button click", "error", err, "operation", "button_click")
		return
	}
	log.Info(ctx, "Handled button click")
}

// buttonClick extracts the first block action of an interaction. The
// request id travels in the button value.
func buttonClick(callback *slack.InteractionCallback) (models.ButtonClick, error) {
	actions := callback.ActionCallback.BlockActions
	if len(actions) == 0 || actions[0] == nil {
		return models.ButtonClick{}, models.ErrNoButtonAction
	}
	action := actions[0]

	ref := models.MessageRef{
		Channel:   callback.Channel.ID,
		Timestamp: callback.Message.Timestamp,
	}
	if ref.Channel == "" {
		ref.Channel = callback.Container.ChannelID
	}
	if ref.Timestamp == "" {
		ref.Timestamp = callback.Container.MessageTs
	}

	return models.ButtonClick{
		Action:      models.ParseButtonAction(action.Text.Text),
		RequestID:   action.Value,
		SlackUserID: callback.User.ID,
		Message:     ref,
	}, nil
}

// handleEvent processes Events API callbacks. It reports whether it has
// already written the response.
func (h *WebhookHandler) handleEvent(ctx context.Context, c *gin.Context) bool {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Error(ctx, "Failed to read Slack event body", "error", err)
		return false
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		log.Error(ctx, "Failed to parse Slack event", "error", err)
		return false
	}

	switch event.Type {
	case slackevents.URLVerification:
		var challenge slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &challenge); err != nil {
			log.Error(ctx, "Failed to parse url_verification challenge", "error", err)
			return false
		}
		c.String(http.StatusOK, challenge.Challenge)
		return true
	case slackevents.CallbackEvent:
		if ev, ok := event.InnerEvent.Data.(*slackevents.LinkSharedEvent); ok {
			h.handleLinkShared(ctx, ev)
		}
	}
	return false
}

func (h *WebhookHandler) handleLinkShared(ctx context.Context, ev *slackevents.LinkSharedEvent) {
	ref := models.MessageRef{
		Channel:   ev.Channel,
		Timestamp: fmt.Sprint(ev.MessageTimeStamp),
	}
	links := make([]string, 0, len(ev.Links))
	for _, link := range ev.Links {
		links = append(links, link.URL)
	}

	ctx = log.WithFields(ctx, log.LogFields{
		"slack_channel":    ref.Channel,
		"slack_message_ts": ref.Timestamp,
		"link_count":       len(links),
	})

	if err := h.unfurler.Unfurl(ctx, ref, links); err != nil {
		log.Error(ctx, "Failed to unfurl shared links", "error", err, "operation", "link_shared")
		return
	}
	log.Info(ctx, "Unfurled shared links")
}
