package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accelo-slack-notifier/internal/config"
	"accelo-slack-notifier/internal/services"
	firestoreTesting "accelo-slack-notifier/internal/testing"
)

const (
	testAcceloBase = "https://acme.api.accelo.com/api/v0/"
	testSlackAPI   = "https://slack.test/api/"
	testSecret     = "s3cret"
)

// testApp runs the real router against mocked Accelo and Slack APIs and an
// isolated Firestore emulator project.
type testApp struct {
	router *gin.Engine
	accelo *httpmock.MockTransport
	slack  *httpmock.MockTransport
	store  *services.FirestoreService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	emulator, _ := firestoreTesting.SetupFirestoreEmulator(t)

	cfg := &config.Config{
		WebhookSecret:    testSecret,
		AcceloDomain:     "acme",
		AcceloRateLimit:  100,
		AcceloRateBurst:  10,
		RequestChannels:  map[string]string{"Support Request": "C100"},
		DenylistChannel:  "C300",
		TitleDenylist:    config.DefaultTitleDenylist,
		AlertRequestType: "Alerts",
	}

	acceloTransport := httpmock.NewMockTransport()
	slackTransport := httpmock.NewMockTransport()
	app := newApp(cfg, emulator.Client, outboundClients{
		accelo: &http.Client{Transport: acceloTransport},
		slack: slack.New("xoxb-test",
			slack.OptionHTTPClient(&http.Client{Transport: slackTransport}),
			slack.OptionAPIURL(testSlackAPI),
		),
		oauth: &http.Client{Transport: slackTransport},
	})

	return &testApp{
		router: app.router(),
		accelo: acceloTransport,
		slack:  slackTransport,
		store:  services.NewFirestoreService(emulator.Client),
	}
}

func (a *testApp) post(query, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook?token="+testSecret+"&"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) slackCalls(method string) int {
	return a.slack.GetCallCountInfo()["POST "+testSlackAPI+method]
}

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

func TestRequestLifecycle(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	standing := "pending"
	app.accelo.RegisterResponder(http.MethodGet, testAcceloBase+"requests/500",
		func(req *http.Request) (*http.Response, error) {
			return acceloResponse(requestFixture(standing))(req)
		})
	app.accelo.RegisterResponder(http.MethodPut, testAcceloBase+"requests/500",
		func(req *http.Request) (*http.Response, error) {
			standing = "closed"
			return acceloResponse(map[string]any{"id": "500", "standing": standing})(req)
		})
	app.slack.RegisterResponder(http.MethodPost, testSlackAPI+"chat.postMessage",
		httpmock.NewStringResponder(http.StatusOK, `{"ok":true,"channel":"C100","ts":"1700000000.000100"}`))
	app.slack.RegisterResponder(http.MethodPost, testSlackAPI+"chat.update",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "C100", req.PostForm.Get("channel"))
			assert.Equal(t, "1700000000.000100", req.PostForm.Get("ts"))
			return httpmock.NewStringResponse(http.StatusOK, `{"ok":true,"channel":"C100","ts":"1700000000.000100"}`), nil
		})

	// New request is announced and tracked.
	w := app.post("app=accelo&type=request_created", "application/json", `{"id":"500"}`)
	assert.JSONEq(t, `{}`, w.Body.String())
	assert.Equal(t, 1, app.slackCalls("chat.postMessage"))

	tracked, err := app.store.GetRequestMessage(ctx, "500")
	require.NoError(t, err)
	require.NotNil(t, tracked)
	assert.Equal(t, "C100", tracked.Channel)
	assert.Equal(t, "1700000000.000100", tracked.MessageTS)

	// Close button updates Accelo and the message in place.
	payload := `{
		"type": "block_actions",
		"user": {"id": "U014"},
		"channel": {"id": "C100"},
		"message": {"ts": "1700000000.000100"},
		"actions": [{"action_id": "request_close", "block_id": "request_actions", "type": "button",
			"value": "500", "text": {"type": "plain_text", "text": "Close"}}]
	}`
	w = app.post("app=slack&type=interaction", "application/x-www-form-urlencoded",
		url.Values{"payload": {payload}}.Encode())
	assert.JSONEq(t, `{}`, w.Body.String())
	assert.Equal(t, 1, app.accelo.GetCallCountInfo()["PUT "+testAcceloBase+"requests/500"])
	assert.Equal(t, 1, app.slackCalls("chat.update"))

	// Status change webhook updates the tracked message again.
	w = app.post("app=accelo&type=request_status_changed", "application/json", `{"id":500}`)
	assert.JSONEq(t, `{}`, w.Body.String())
	assert.Equal(t, 2, app.slackCalls("chat.update"))
}

func TestWebhook_WrongTokenDoesNothing(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/webhook?token=nope&app=accelo&type=request_created",
		strings.NewReader(`{"id":"500"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{}`, w.Body.String())
	assert.Zero(t, app.accelo.GetTotalCallCount())
	assert.Zero(t, app.slack.GetTotalCallCount())
}

func TestRoutes(t *testing.T) {
	app := newTestApp(t)

	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	app.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://acme.accelo.com", w.Header().Get("Location"))
}
