package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
)

const slackWorkspacesCollection = "slack_workspaces"

// SlackInstallations records the Slack app installs completed through the
// OAuth callback, one document per team.
type SlackInstallations struct {
	client *firestore.Client
}

// NewSlackInstallations creates a new SlackInstallations store.
func NewSlackInstallations(client *firestore.Client) *SlackInstallations {
	return &SlackInstallations{client: client}
}

// SaveInstallation upserts the install of workspace.ID. A reinstall replaces
// the token and scopes but keeps the first install time.
func (si *SlackInstallations) SaveInstallation(ctx context.Context, workspace *models.SlackWorkspace) error {
	if err := workspace.Validate(); err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}

	docRef := si.client.Collection(slackWorkspacesCollection).Doc(workspace.ID)
	err := si.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		now := time.Now()
		installed := *workspace
		installed.InstalledAt = now
		installed.UpdatedAt = now

		doc, err := tx.Get(docRef)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			var previous models.SlackWorkspace
			if err := doc.DataTo(&previous); err == nil && !previous.InstalledAt.IsZero() {
				installed.InstalledAt = previous.InstalledAt
			}
		}

		if err := tx.Set(docRef, &installed); err != nil {
			return err
		}
		*workspace = installed
		return nil
	})
	if err != nil {
		log.Error(ctx, "Failed to save Slack installation",
			"error", err,
			"slack_team_id", workspace.ID,
			"operation", "save_installation",
		)
		return fmt.Errorf("failed to save installation of team %s: %w", workspace.ID, err)
	}

	log.Info(ctx, "Slack installation saved",
		"slack_team_id", workspace.ID,
		"team_name", workspace.TeamName,
		"installed_by", workspace.InstalledBy,
	)
	return nil
}

// GetInstallation returns the install of teamID, or nil, nil when the team
// never installed the app.
func (si *SlackInstallations) GetInstallation(ctx context.Context, teamID string) (*models.SlackWorkspace, error) {
	if teamID == "" {
		return nil, models.ErrTeamIDRequired
	}

	doc, err := si.client.Collection(slackWorkspacesCollection).Doc(teamID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get installation of team %s: %w", teamID, err)
	}

	var workspace models.SlackWorkspace
	if err := doc.DataTo(&workspace); err != nil {
		return nil, fmt.Errorf("failed to decode installation of team %s: %w", teamID, err)
	}
	return &workspace, nil
}
