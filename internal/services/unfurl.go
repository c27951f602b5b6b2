package services

import (
	"context"

	"github.com/slack-go/slack"

	"accelo-slack-notifier/internal/log"
	"accelo-slack-notifier/internal/models"
	"accelo-slack-notifier/internal/ui"
	"accelo-slack-notifier/internal/utils"
)

const (
	issuePreviewFields    = "title,description,standing,status(),assignee,contact(),company()"
	issueTitleFields      = "title"
	taskPreviewFields     = "title,description,against_type,against_id,assignee,status(),contact()"
	activityPreviewFields = "subject,body,against_type,against_id,owner_type,owner_id,staff"
)

// LinkUnfurlResolver turns shared Accelo links into Slack previews.
type LinkUnfurlResolver struct {
	accelo   *AcceloClient
	slack    *SlackService
	mentions *Mentions
	builder  *ui.UnfurlBuilder
}

func NewLinkUnfurlResolver(
	accelo *AcceloClient, slackService *SlackService, mentions *Mentions, webURL string,
) *LinkUnfurlResolver {
	return &LinkUnfurlResolver{
		accelo:   accelo,
		slack:    slackService,
		mentions: mentions,
		builder:  ui.NewUnfurlBuilder(webURL),
	}
}

// Unfurl resolves every link and submits the previews for the message at
// ref in a single call. Nothing is sent when no link resolves.
func (r *LinkUnfurlResolver) Unfurl(ctx context.Context, ref models.MessageRef, links []string) error {
	unfurls := r.ResolveUnfurls(ctx, links)
	if len(unfurls) == 0 {
		log.Debug(ctx, "No Accelo links to unfurl", "link_count", len(links))
		return nil
	}
	return r.slack.UnfurlLinks(ctx, ref, unfurls)
}

// ResolveUnfurls builds one preview per resolvable link, keyed by URL. Links
// without an id, of an unknown kind, not logged against an issue, or whose
// lookup fails are left out.
func (r *LinkUnfurlResolver) ResolveUnfurls(ctx context.Context, links []string) map[string]slack.Attachment {
	unfurls := make(map[string]slack.Attachment)
	for _, link := range links {
		id := utils.ExtractLinkID(link)
		if id == "" {
			continue
		}
		kind := utils.ClassifyLink(link)
		linkCtx := log.WithFields(ctx, log.LogFields{"link": link, "link_kind": kind.String(), "object_id": id})

		var (
			preview *slack.Attachment
			err     error
		)
		switch kind {
		case utils.LinkIssue:
			preview, err = r.issuePreview(linkCtx, id)
		case utils.LinkTask:
			preview, err = r.taskPreview(linkCtx, id)
		case utils.LinkActivity:
			preview, err = r.activityPreview(linkCtx, id)
		case utils.LinkUnknown:
		}

		if err != nil {
			log.Warn(linkCtx, "Skipping link that could not be resolved", "error", err)
			continue
		}
		if preview != nil {
			unfurls[link] = *preview
		}
	}
	return unfurls
}

func (r *LinkUnfurlResolver) issuePreview(ctx context.Context, id string) (*slack.Attachment, error) {
	issue, err := r.accelo.Issues.Get(ctx, id, issuePreviewFields)
	if err != nil {
		return nil, err
	}
	preview := r.builder.IssuePreview(issue, r.mentions.Staff(ctx, issue.AssigneeID()))
	return &preview, nil
}

func (r *LinkUnfurlResolver) taskPreview(ctx context.Context, id string) (*slack.Attachment, error) {
	task, err := r.accelo.Tasks.Get(ctx, id, taskPreviewFields)
	if err != nil {
		return nil, err
	}
	if task.AgainstType != models.AgainstIssue {
		return nil, nil
	}

	issue, err := r.accelo.Issues.Get(ctx, task.AgainstID.String(), issueTitleFields)
	if err != nil {
		return nil, err
	}
	preview := r.builder.TaskPreview(task, issue, r.mentions.Staff(ctx, task.Assignee))
	return &preview, nil
}

func (r *LinkUnfurlResolver) activityPreview(ctx context.Context, id string) (*slack.Attachment, error) {
	activity, err := r.accelo.Activities.Get(ctx, id, activityPreviewFields)
	if err != nil {
		return nil, err
	}
	if activity.AgainstType != models.AgainstIssue {
		return nil, nil
	}

	issue, err := r.accelo.Issues.Get(ctx, activity.AgainstID.String(), issueTitleFields)
	if err != nil {
		return nil, err
	}

	var from string
	switch activity.OwnerType {
	case models.OwnerStaff:
		from = r.mentions.Staff(ctx, activity.Staff)
	case models.OwnerAffiliation:
		affiliation, err := r.accelo.Affiliations.Get(ctx, activity.OwnerID.String(), "email")
		if err != nil {
			return nil, err
		}
		from = "`" + affiliation.Email + "`"
	}

	preview := r.builder.ActivityPreview(activity, issue, from)
	return &preview, nil
}
