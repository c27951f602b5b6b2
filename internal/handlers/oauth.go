package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"

	"accelo-slack-notifier/internal/config"
	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
)

// InstallationStore persists Slack app installations.
type InstallationStore interface {
	SaveInstallation(ctx context.Context, workspace *models.SlackWorkspace) error
}

// OAuthHandler handles the Slack app install callback and the browser
// landing page.
type OAuthHandler struct {
	installs     InstallationStore
	httpClient   *http.Client
	clientID     string
	clientSecret string
	acceloWebURL string
}

// NewOAuthHandler creates a new OAuth handler.
func NewOAuthHandler(cfg *config.Config, installs InstallationStore, httpClient *http.Client) *OAuthHandler {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthHandler{
		installs:     installs,
		httpClient:   httpClient,
		clientID:     cfg.SlackClientID,
		clientSecret: cfg.SlackClientSecret,
		acceloWebURL: cfg.AcceloWebURL(),
	}
}

// HandleSlackCallback exchanges an install code for a bot token and stores
// the workspace installation.
// GET /slack/oauth/callback?code=<code>.
func (h *OAuthHandler) HandleSlackCallback(c *gin.Context) {
	ctx := log.WithFields(c.Request.Context(), log.LogFields{
		"handler": "slack_oauth_callback",
	})

	if errorParam := c.Query("error"); errorParam != "" {
		log.Warn(ctx, "Slack install was not authorised", "error", errorParam)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Authorization Failed",
			"message": "Slack authorization was cancelled or denied",
		})
		return
	}

	code := c.Query("code")
	if code == "" {
		log.Error(ctx, "Missing code parameter in Slack OAuth callback")
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid Callback",
			"message": "Missing required code parameter",
		})
		return
	}

	if h.clientID == "" || h.clientSecret == "" {
		log.Error(ctx, "Slack OAuth callback received but client credentials are not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Not Configured",
			"message": "Slack installation is not enabled",
		})
		return
	}

	resp, err := slack.GetOAuthV2ResponseContext(ctx, h.httpClient, h.clientID, h.clientSecret, code, "")
	if err != nil {
		log.Error(ctx, "Failed to exchange Slack OAuth code", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Authentication Failed",
			"message": "Failed to complete the Slack installation",
		})
		return
	}

	ctx = log.WithFields(ctx, log.LogFields{
		"slack_team_id": resp.Team.ID,
		"installed_by":  resp.AuthedUser.ID,
	})

	workspace := &models.SlackWorkspace{
		ID:          resp.Team.ID,
		TeamName:    resp.Team.Name,
		AccessToken: resp.AccessToken,
		Scope:       resp.Scope,
		InstalledBy: resp.AuthedUser.ID,
		AppID:       resp.AppID,
		BotUserID:   resp.BotUserID,
	}

	if err := h.installs.SaveInstallation(ctx, workspace); err != nil {
		log.Error(ctx, "Failed to save workspace after OAuth", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Save Failed",
			"message": "Failed to save the workspace installation",
		})
		return
	}

	log.Info(ctx, "Slack workspace installed")
	c.Redirect(http.StatusFound, h.acceloWebURL)
}

// HandleHome sends browsers that open the service URL on to the Accelo deployment.
// GET /.
func (h *OAuthHandler) HandleHome(c *gin.Context) {
	c.Redirect(http.StatusFound, h.acceloWebURL)
}

// HandleHealth reports liveness.
// GET /health.
func HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
