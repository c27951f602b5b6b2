package services

import (
	"context"
	"net/http"
	"sync"

	"github.com/jarcoal/httpmock"

	"accelo-slack-notifier/internal/config"
	"accelo-slack-notifier/internal/models"
)

// memoryStore is an in-memory MessageStore.
type memoryStore struct {
	mu       sync.Mutex
	messages map[string]models.MessageRef
	err      error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{messages: make(map[string]models.MessageRef)}
}

func (m *memoryStore) GetRequestMessage(_ context.Context, requestID string) (*models.TrackedRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	ref, ok := m.messages[requestID]
	if !ok {
		return nil, nil
	}
	return &models.TrackedRequest{RequestID: requestID, Channel: ref.Channel, MessageTS: ref.Timestamp}, nil
}

func (m *memoryStore) SaveRequestMessage(_ context.Context, requestID string, ref models.MessageRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages[requestID] = ref
	return nil
}

func (m *memoryStore) DeleteRequestMessage(_ context.Context, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, requestID)
	return nil
}

// memoryDirectory is an in-memory UserDirectory.
type memoryDirectory struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryDirectory(users ...*models.User) *memoryDirectory {
	d := &memoryDirectory{users: make(map[string]*models.User)}
	for _, u := range users {
		d.users[u.AcceloID] = u
	}
	return d
}

func (d *memoryDirectory) GetUserByAcceloID(_ context.Context, acceloID string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[acceloID], nil
}

func (d *memoryDirectory) GetUserBySlackID(_ context.Context, slackUserID string) (*models.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.SlackUserID == slackUserID {
			return u, nil
		}
	}
	return nil, nil
}

func (d *memoryDirectory) SaveUser(_ context.Context, user *models.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.AcceloID] = user
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		AcceloDomain:     "acme",
		RequestChannels:  map[string]string{"Support Request": "C100", "Alerts": "C200"},
		DenylistChannel:  "C300",
		TitleDenylist:    config.DefaultTitleDenylist,
		AlertRequestType: "Alerts",
	}
}

// acceloResponse wraps v in the Accelo response envelope.
func acceloResponse(v any) httpmock.Responder {
	return httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{
		"response": v,
		"meta":     map[string]any{"status": "ok"},
	})
}

func requestFixture(standing string) map[string]any {
	return map[string]any{
		"id":            "500",
		"title":         "Printer on fire",
		"body":          "smoke everywhere",
		"standing":      standing,
		"conversion_id": "0",
		"claimer":       "0",
		"type":          map[string]any{"id": "1", "title": "Support Request"},
		"affiliation": map[string]any{
			"id":      "9",
			"email":   "pat@example.com",
			"contact": map[string]any{"id": "31", "firstname": "Pat", "surname": "Lee"},
			"company": map[string]any{"id": "41", "name": "Example Co"},
		},
	}
}
