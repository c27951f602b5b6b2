package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accelo-slack-notifier/internal/models"
	firestoreTesting "accelo-slack-notifier/internal/testing"
)

func TestFirestoreService_RequestMessages(t *testing.T) {
	emulator, ctx := firestoreTesting.SetupFirestoreEmulator(t)
	fs := NewFirestoreService(emulator.Client)

	tracked, err := fs.GetRequestMessage(ctx, "500")
	require.NoError(t, err)
	assert.Nil(t, tracked, "absent entries are not an error")

	require.NoError(t, fs.SaveRequestMessage(ctx, "500", models.MessageRef{Channel: "C100", Timestamp: "1700000000.000100"}))

	tracked, err = fs.GetRequestMessage(ctx, "500")
	require.NoError(t, err)
	require.NotNil(t, tracked)
	assert.Equal(t, "500", tracked.RequestID)
	assert.Equal(t, models.MessageRef{Channel: "C100", Timestamp: "1700000000.000100"}, tracked.Ref())
	created := tracked.CreatedAt

	require.NoError(t, fs.SaveRequestMessage(ctx, "500", models.MessageRef{Channel: "C100", Timestamp: "1700000000.000200"}))
	tracked, err = fs.GetRequestMessage(ctx, "500")
	require.NoError(t, err)
	assert.Equal(t, "1700000000.000200", tracked.MessageTS)
	assert.True(t, tracked.CreatedAt.Equal(created), "replacing keeps the creation time")
	assert.False(t, tracked.UpdatedAt.Before(created))

	require.NoError(t, fs.DeleteRequestMessage(ctx, "500"))
	tracked, err = fs.GetRequestMessage(ctx, "500")
	require.NoError(t, err)
	assert.Nil(t, tracked)

	require.NoError(t, fs.DeleteRequestMessage(ctx, "500"), "deleting twice is fine")
}

func TestFirestoreService_RequestMessageValidation(t *testing.T) {
	emulator, ctx := firestoreTesting.SetupFirestoreEmulator(t)
	fs := NewFirestoreService(emulator.Client)

	_, err := fs.GetRequestMessage(ctx, "")
	assert.ErrorIs(t, err, models.ErrRequestIDRequired)

	err = fs.SaveRequestMessage(ctx, "500", models.MessageRef{Timestamp: "1"})
	assert.ErrorIs(t, err, models.ErrSlackChannelMissing)

	err = fs.SaveRequestMessage(ctx, "500", models.MessageRef{Channel: "C1"})
	assert.ErrorIs(t, err, models.ErrSlackMessageTSEmpty)
}

func TestFirestoreService_Users(t *testing.T) {
	emulator, ctx := firestoreTesting.SetupFirestoreEmulator(t)
	fs := NewFirestoreService(emulator.Client)

	user, err := fs.GetUserByAcceloID(ctx, "14")
	require.NoError(t, err)
	assert.Nil(t, user)

	require.NoError(t, fs.SaveUser(ctx, &models.User{
		AcceloID:      "14",
		SlackUserID:   "U014",
		SlackUsername: "pat",
		Email:         "pat@example.com",
		FirstName:     "Pat",
		LastName:      "Lee",
	}))
	require.NoError(t, fs.SaveUser(ctx, &models.User{AcceloID: "15", SlackUserID: "U015"}))

	user, err = fs.GetUserByAcceloID(ctx, "14")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "U014", user.SlackUserID)
	assert.False(t, user.UpdatedAt.IsZero())

	user, err = fs.GetUserBySlackID(ctx, "U015")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "15", user.AcceloID)

	user, err = fs.GetUserBySlackID(ctx, "U999")
	require.NoError(t, err)
	assert.Nil(t, user)

	users, err := fs.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	assert.ErrorIs(t, fs.SaveUser(ctx, &models.User{SlackUserID: "U1"}), models.ErrAcceloIDRequired)
}

func TestSlackInstallations(t *testing.T) {
	emulator, ctx := firestoreTesting.SetupFirestoreEmulator(t)
	installs := NewSlackInstallations(emulator.Client)

	workspace, err := installs.GetInstallation(ctx, "T1")
	require.NoError(t, err)
	assert.Nil(t, workspace)

	err = installs.SaveInstallation(ctx, &models.SlackWorkspace{ID: "T1"})
	assert.ErrorIs(t, err, models.ErrAccessTokenRequired)

	first := &models.SlackWorkspace{ID: "T1", TeamName: "Acme", AccessToken: "xoxb-1", InstalledBy: "U1"}
	require.NoError(t, installs.SaveInstallation(ctx, first))
	assert.False(t, first.InstalledAt.IsZero())

	require.NoError(t, installs.SaveInstallation(ctx, &models.SlackWorkspace{
		ID: "T1", TeamName: "Acme", AccessToken: "xoxb-2", InstalledBy: "U2",
	}))

	workspace, err = installs.GetInstallation(ctx, "T1")
	require.NoError(t, err)
	require.NotNil(t, workspace)
	assert.Equal(t, "xoxb-2", workspace.AccessToken)
	assert.Equal(t, "U2", workspace.InstalledBy)
	assert.WithinDuration(t, first.InstalledAt, workspace.InstalledAt, time.Millisecond, "reinstall keeps the first install time")
	assert.True(t, !workspace.UpdatedAt.Before(workspace.InstalledAt))
}
