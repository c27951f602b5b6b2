package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected ID
	}{
		{name: "string id", input: `"500"`, expected: "500"},
		{name: "numeric id", input: `500`, expected: "500"},
		{name: "zero", input: `0`, expected: "0"},
		{name: "null", input: `null`, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.input), &id))
			assert.Equal(t, tt.expected, id)
		})
	}

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"id":1}`), &id))
}

func TestID_IsZero(t *testing.T) {
	assert.True(t, ID("").IsZero())
	assert.True(t, ID("0").IsZero())
	assert.False(t, ID("42").IsZero())
}

func TestRequest_ToleratesMissingLinks(t *testing.T) {
	body := `{
		"id": 500,
		"title": "Printer on fire",
		"standing": "pending",
		"conversion_id": null,
		"claimer": "0",
		"affiliation": {"id": "7", "email": "pat@example.com", "contact": {"id": 3, "firstname": "Pat", "surname": "Lee"}}
	}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.Equal(t, ID("500"), req.ID)
	assert.True(t, req.ConversionID.IsZero())
	assert.Equal(t, ID("0"), req.Claimer)
	assert.Empty(t, req.TypeTitle())
	require.NotNil(t, req.Affiliation)
	assert.Nil(t, req.Affiliation.Company)
	assert.Equal(t, "Pat Lee", req.Affiliation.Contact.Name())
}

func TestCount_Int(t *testing.T) {
	n, err := Count{Count: "12"}.Int()
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = Count{}.Int()
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = Count{Count: "many"}.Int()
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		app       string
		eventType string
		expected  EventKind
	}{
		{AppAccelo, "request_created", EventRequestCreated},
		{AppAccelo, "request_status_changed", EventRequestStatusChanged},
		{AppAccelo, "issue_created", EventUnknown},
		{AppSlack, "interaction", EventSlackInteraction},
		{AppSlack, "event", EventSlackEvent},
		{AppSlack, "request_created", EventUnknown},
		{"github", "event", EventUnknown},
		{"", "", EventUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.app+"/"+tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyEvent(tt.app, tt.eventType))
		})
	}
}

func TestParseButtonAction(t *testing.T) {
	assert.Equal(t, ButtonRefresh, ParseButtonAction("Refresh"))
	assert.Equal(t, ButtonClaim, ParseButtonAction("Claim"))
	assert.Equal(t, ButtonClose, ParseButtonAction("Close"))
	assert.Equal(t, ButtonReopen, ParseButtonAction("Re-Open"))
	assert.Equal(t, ButtonUnknown, ParseButtonAction("Convert"))
	assert.Equal(t, ButtonUnknown, ParseButtonAction("reopen"))

	for _, action := range []ButtonAction{ButtonRefresh, ButtonClaim, ButtonClose, ButtonReopen} {
		assert.Equal(t, action, ParseButtonAction(action.String()))
	}
}

func TestMessageRef_Validate(t *testing.T) {
	assert.NoError(t, MessageRef{Channel: "C1", Timestamp: "1.2"}.Validate())
	assert.ErrorIs(t, MessageRef{Timestamp: "1.2"}.Validate(), ErrSlackChannelMissing)
	assert.ErrorIs(t, MessageRef{Channel: "C1"}.Validate(), ErrSlackMessageTSEmpty)
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Pat Lee", (&User{FirstName: "Pat", LastName: "Lee"}).FullName())
	assert.Equal(t, "Pat", (&User{FirstName: "Pat"}).FullName())
	assert.Equal(t, "Lee", (&User{LastName: "Lee"}).FullName())
}

func TestLinks_ExpandedOrBareID(t *testing.T) {
	body := `{
		"id": "77",
		"title": "Replace printer",
		"status": {"id": "2", "title": "In Progress"},
		"assignee": 14,
		"contact": {"id": "3", "firstname": "Pat", "surname": "Lee"},
		"company": "41"
	}`

	var issue Issue
	require.NoError(t, json.Unmarshal([]byte(body), &issue))

	assert.Equal(t, "In Progress", issue.StatusTitle())
	assert.Equal(t, ID("14"), issue.AssigneeID())
	assert.Equal(t, "Pat Lee", issue.Contact.Name())
	require.NotNil(t, issue.Company)
	assert.Equal(t, ID("41"), issue.Company.ID)
	assert.Empty(t, issue.Company.Name)

	var staff Staff
	require.NoError(t, json.Unmarshal([]byte(`{"id": 14, "firstname": "Sam", "email": "sam@example.com"}`), &staff))
	assert.Equal(t, ID("14"), staff.ID)
	assert.Equal(t, "sam@example.com", staff.Email)
}
