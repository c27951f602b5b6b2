package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
	"accelo-slack-notifier/internal/ui"
)

// Mentions renders Accelo staff as Slack mentions through the user
// directory.
type Mentions struct {
	users UserDirectory
}

func NewMentions(users UserDirectory) *Mentions {
	return &Mentions{users: users}
}

// Staff returns "<@U..>" for a synced staff member and "staff #<id>"
// otherwise. Directory failures degrade to the fallback.
func (m *Mentions) Staff(ctx context.Context, staffID models.ID) string {
	fallback := "staff #" + staffID.String()

	user, err := m.users.GetUserByAcceloID(ctx, staffID.String())
	if err != nil {
		log.Warn(ctx, "Falling back to staff id for mention",
			"error", err,
			"accelo_id", staffID.String(),
		)
		return fallback
	}
	if user == nil || user.SlackUserID == "" {
		return fallback
	}
	return ui.Mention(user.SlackUserID)
}

// SyncResult counts the outcome of one user sync.
type SyncResult struct {
	Matched   int
	Unmatched []string
}

// UserSyncService matches Accelo staff to Slack accounts by email.
type UserSyncService struct {
	accelo *AcceloClient
	slack  *SlackService
	users  UserDirectory
}

func NewUserSyncService(accelo *AcceloClient, slackService *SlackService, users UserDirectory) *UserSyncService {
	return &UserSyncService{accelo: accelo, slack: slackService, users: users}
}

// SyncUsers lists every Accelo staff member and saves those whose email
// belongs to a Slack account. The workspace member list is consulted first;
// users.lookupByEmail covers members whose profile email is hidden.
func (s *UserSyncService) SyncUsers(ctx context.Context) (*SyncResult, error) {
	staff, err := s.accelo.Staff.List(ctx, AcceloQuery{Fields: "firstname,surname,email,username"})
	if err != nil {
		return nil, fmt.Errorf("failed to list accelo staff: %w", err)
	}

	members, err := s.slack.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	byEmail := make(map[string]slack.User, len(members))
	for _, member := range members {
		if member.Deleted || member.IsBot || member.Profile.Email == "" {
			continue
		}
		byEmail[strings.ToLower(member.Profile.Email)] = member
	}

	result := &SyncResult{}
	for _, person := range staff {
		if person.Email == "" {
			result.Unmatched = append(result.Unmatched, person.ID.String())
			continue
		}

		member, ok := byEmail[strings.ToLower(person.Email)]
		if !ok {
			found, err := s.slack.LookupUserByEmail(ctx, person.Email)
			if errors.Is(err, models.ErrUserNotFound) {
				result.Unmatched = append(result.Unmatched, person.ID.String())
				continue
			}
			if err != nil {
				return nil, err
			}
			member = *found
		}

		user := &models.User{
			AcceloID:      person.ID.String(),
			SlackUserID:   member.ID,
			SlackUsername: member.Name,
			Email:         person.Email,
			FirstName:     person.Firstname,
			LastName:      person.Surname,
		}
		if err := s.users.SaveUser(ctx, user); err != nil {
			return nil, err
		}
		result.Matched++
	}

	log.Info(ctx, "Synced Accelo staff with Slack users",
		"staff", len(staff),
		"matched", result.Matched,
		"unmatched", len(result.Unmatched),
	)
	return result, nil
}
