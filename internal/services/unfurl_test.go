package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accelo-slack-notifier/internal/models"
)

func newTestUnfurlResolver(t *testing.T) (*LinkUnfurlResolver, *httpmock.MockTransport, *httpmock.MockTransport) {
	t.Helper()
	acceloClient, acceloTransport := newTestAcceloClient(t)
	slackService, slackTransport := newTestSlackService(t)
	mentions := NewMentions(newMemoryDirectory(&models.User{AcceloID: "14", SlackUserID: "U014"}))
	return NewLinkUnfurlResolver(acceloClient, slackService, mentions, "https://acme.accelo.com"), acceloTransport, slackTransport
}

func registerUnfurlFixtures(transport *httpmock.MockTransport) {
	transport.RegisterResponder(http.MethodGet, testAcceloBase+"issues/77", acceloResponse(map[string]any{
		"id":          "77",
		"title":       "Replace printer",
		"description": "Order a new one",
		"status":      map[string]any{"id": "3", "title": "In Progress"},
		"assignee":    "14",
		"contact":     map[string]any{"id": "31", "firstname": "Pat", "surname": "Lee"},
		"company":     map[string]any{"id": "41", "name": "Example Co"},
	}))
	transport.RegisterResponder(http.MethodGet, testAcceloBase+"tasks/8", acceloResponse(map[string]any{
		"id":           "8",
		"title":        "Call vendor",
		"description":  "Ask about toner",
		"against_type": "issue",
		"against_id":   "77",
		"assignee":     "15",
		"status":       map[string]any{"id": "1", "title": "Pending"},
		"contact":      map[string]any{"id": "31", "firstname": "Pat", "surname": "Lee"},
	}))
	transport.RegisterResponder(http.MethodGet, testAcceloBase+"tasks/9", acceloResponse(map[string]any{
		"id":           "9",
		"title":        "Internal chore",
		"against_type": "job",
		"against_id":   "3",
	}))
	transport.RegisterResponder(http.MethodGet, testAcceloBase+"activities/12", acceloResponse(map[string]any{
		"id":           "12",
		"subject":      "Re: printer",
		"body":         "Still smoking",
		"against_type": "issue",
		"against_id":   "77",
		"owner_type":   "affiliation",
		"owner_id":     "9",
		"staff":        "0",
	}))
	transport.RegisterResponder(http.MethodGet, testAcceloBase+"activities/13", acceloResponse(map[string]any{
		"id":           "13",
		"subject":      "Update",
		"body":         "Ordered",
		"against_type": "issue",
		"against_id":   "77",
		"owner_type":   "staff",
		"owner_id":     "14",
		"staff":        "14",
	}))
	transport.RegisterResponder(http.MethodGet, testAcceloBase+"affiliations/9", acceloResponse(map[string]any{
		"id":    "9",
		"email": "pat@example.com",
	}))
	transport.RegisterResponder(http.MethodGet, testAcceloBase+"issues/404",
		httpmock.NewStringResponder(http.StatusNotFound, `{"meta":{"status":"not_found"}}`))
}

func TestResolveUnfurls(t *testing.T) {
	const (
		issueLink       = "https://acme.accelo.com/?action=view_issue&id=77"
		supportLink     = "https://acme.accelo.com/?action=view_support_issue&id=77abc"
		taskLink        = "https://acme.accelo.com/?action=view_task&id=8"
		jobTaskLink     = "https://acme.accelo.com/?action=view_task&id=9"
		activityLink    = "https://acme.accelo.com/?action=view_activity&id=12"
		staffActivity   = "https://acme.accelo.com/?action=view_activity&id=13"
		missingLink     = "https://acme.accelo.com/?action=view_issue&id=404"
		requestLink     = "https://acme.accelo.com/?action=customer_request&id=500"
		noIDLink        = "https://acme.accelo.com/?action=view_issue"
		expectedTicket  = "\nTicket: <https://acme.accelo.com/?action=view_issue&id=77|Replace printer>"
		expectedContact = "\nContact: <https://acme.accelo.com/?action=view_contact&id=31|Pat Lee>"
	)

	resolver, accelo, _ := newTestUnfurlResolver(t)
	registerUnfurlFixtures(accelo)

	unfurls := resolver.ResolveUnfurls(context.Background(), []string{
		issueLink, supportLink, taskLink, jobTaskLink, activityLink, staffActivity, missingLink, requestLink, noIDLink,
	})

	assert.Len(t, unfurls, 5)

	assert.Equal(t, slack.Attachment{
		Title: ":ticket: Replace printer",
		Text:  "\nContact: Pat Lee\nCompany: Example Co\nAssigned to: <@U014>\nStatus: `In Progress`\n```Order a new one```",
	}, unfurls[issueLink])
	assert.Equal(t, unfurls[issueLink], unfurls[supportLink])

	assert.Equal(t, slack.Attachment{
		Title: ":clipboard: Call vendor",
		Text:  expectedTicket + expectedContact + "\nAssigned to: staff #15\nStatus: `Pending`\n```Ask about toner```",
	}, unfurls[taskLink])

	assert.Equal(t, slack.Attachment{
		Title: ":pencil: Re: printer",
		Text:  expectedTicket + "\nFrom: `pat@example.com`\n```Still smoking```",
	}, unfurls[activityLink])
	assert.Equal(t, expectedTicket+"\nFrom: <@U014>\n```Ordered```", unfurls[staffActivity].Text)

	for _, skipped := range []string{jobTaskLink, missingLink, requestLink, noIDLink} {
		assert.NotContains(t, unfurls, skipped)
	}
}

func TestUnfurl_SubmitsOneCall(t *testing.T) {
	resolver, accelo, slackTransport := newTestUnfurlResolver(t)
	registerUnfurlFixtures(accelo)

	slackTransport.RegisterResponder(http.MethodPost, testSlackAPI+"chat.unfurl",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, req.ParseForm())
			assert.Equal(t, "C100", req.PostForm.Get("channel"))
			assert.Equal(t, "1.2", req.PostForm.Get("ts"))

			var unfurls map[string]slack.Attachment
			require.NoError(t, json.Unmarshal([]byte(req.PostForm.Get("unfurls")), &unfurls))
			assert.Len(t, unfurls, 2)
			return httpmock.NewStringResponse(http.StatusOK, `{"ok":true}`), nil
		})

	ref := models.MessageRef{Channel: "C100", Timestamp: "1.2"}
	err := resolver.Unfurl(context.Background(), ref, []string{
		"https://acme.accelo.com/?action=view_issue&id=77",
		"https://acme.accelo.com/?action=view_task&id=8",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, slackTransport.GetTotalCallCount())
}

func TestUnfurl_NothingToSend(t *testing.T) {
	resolver, _, slackTransport := newTestUnfurlResolver(t)

	err := resolver.Unfurl(context.Background(), models.MessageRef{Channel: "C100", Timestamp: "1.2"},
		[]string{"https://acme.accelo.com/?action=customer_request&id=500"})
	require.NoError(t, err)
	assert.Zero(t, slackTransport.GetTotalCallCount())
}
