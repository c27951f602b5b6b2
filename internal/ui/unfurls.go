package ui

import (
	"fmt"

	"accelo-slack-notifier/internal/models"

	"github.com/slack-go/slack"
)

// UnfurlBuilder renders link previews for shared Accelo URLs.
type UnfurlBuilder struct {
	links *Links
}

func NewUnfurlBuilder(webURL string) *UnfurlBuilder {
	return &UnfurlBuilder{links: NewLinks(webURL)}
}

// IssuePreview renders an issue card. assignee is a pre-rendered mention.
func (b *UnfurlBuilder) IssuePreview(issue *models.Issue, assignee string) slack.Attachment {
	contact, company := "", ""
	if issue.Contact != nil {
		contact = issue.Contact.Name()
	}
	if issue.Company != nil {
		company = issue.Company.Name
	}

	return slack.Attachment{
		Title: ":ticket: " + issue.Title,
		Text: fmt.Sprintf("\nContact: %s\nCompany: %s\nAssigned to: %s\nStatus: `%s`\n```%s```",
			contact, company, assignee, issue.StatusTitle(), issue.Description),
	}
}

// TaskPreview renders a card for a task logged against issue.
func (b *UnfurlBuilder) TaskPreview(task *models.Task, issue *models.Issue, assignee string) slack.Attachment {
	contact := ""
	if task.Contact != nil {
		contact = link(b.links.Contact(task.Contact.ID.String()), task.Contact.Name())
	}

	return slack.Attachment{
		Title: ":clipboard: " + task.Title,
		Text: fmt.Sprintf("\nTicket: %s\nContact: %s\nAssigned to: %s\nStatus: `%s`\n```%s```",
			link(b.links.Issue(task.AgainstID.String()), issue.Title),
			contact, assignee, task.StatusTitle(), task.Description),
	}
}

// ActivityPreview renders a card for an activity logged against issue. from
// is a mention for staff and the quoted email for affiliations.
func (b *UnfurlBuilder) ActivityPreview(activity *models.Activity, issue *models.Issue, from string) slack.Attachment {
	return slack.Attachment{
		Title: ":pencil: " + activity.Subject,
		Text: fmt.Sprintf("\nTicket: %s\nFrom: %s\n```%s```",
			link(b.links.Issue(activity.AgainstID.String()), issue.Title), from, activity.Body),
	}
}
