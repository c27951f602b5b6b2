// Package ui contains Slack Block Kit UI components and builders.
package ui

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"accelo-slack-notifier/internal/models"

	"github.com/slack-go/slack"
)

// Action and block IDs of the request message buttons. Dispatch happens on
// the button label; the IDs only need to be unique within the message.
const (
	RequestActionsBlockID = "request_actions"

	ActionRefresh    = "request_refresh"
	ActionClaim      = "request_claim"
	ActionConvert    = "request_convert"
	ActionClose      = "request_close"
	ActionReopen     = "request_reopen"
	ActionViewTicket = "request_view_ticket"
)

const (
	issueSummaryLength = 200
	emptyField         = "None"
)

// Message is a chat message ready to be posted or used as an update.
type Message struct {
	Channel     string
	Text        string
	Blocks      []slack.Block
	Attachments []slack.Attachment
}

// Options converts the message into slack-go message options.
func (m Message) Options() []slack.MsgOption {
	opts := []slack.MsgOption{slack.MsgOptionText(m.Text, false)}
	if len(m.Blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(m.Blocks...))
	}
	if len(m.Attachments) > 0 {
		opts = append(opts, slack.MsgOptionAttachments(m.Attachments...))
	}
	return opts
}

// RequestContent is everything needed to render one request. Mentions are
// resolved by the caller.
type RequestContent struct {
	Request *models.Request
	Claimer string

	// Issue is set only for converted requests with a linked issue.
	Issue    *models.Issue
	Assignee string

	// ShowBody adds the raw request body, used for alert requests.
	ShowBody bool
}

// RequestMessageBuilder renders Accelo requests as Slack messages.
type RequestMessageBuilder struct {
	links *Links
}

// NewRequestMessageBuilder creates a builder linking to the given Accelo
// deployment, e.g. https://acme.accelo.com.
func NewRequestMessageBuilder(webURL string) *RequestMessageBuilder {
	return &RequestMessageBuilder{links: NewLinks(webURL)}
}

// BuildRequest renders the request message for channel.
func (b *RequestMessageBuilder) BuildRequest(channel string, content RequestContent) Message {
	req := content.Request
	requestID := req.ID.String()
	standing := NormalizeStanding(req.Standing)

	blocks := []slack.Block{
		markdownSection(fmt.Sprintf("*%s*", link(b.links.Request(requestID), req.Title))),
		b.fieldsSection(req, standing, content.Claimer),
	}

	switch standing {
	case "Pending", "Open":
		if content.ShowBody {
			blocks = append(blocks, markdownSection("```"+req.Body+"```"))
		}
		convert := button(ActionConvert, models.LabelConvert, requestID, slack.StylePrimary)
		convert.URL = b.links.Convert(requestID)
		blocks = append(blocks, slack.NewActionBlock(RequestActionsBlockID,
			button(ActionRefresh, models.LabelRefresh, requestID, ""),
			button(ActionClaim, models.LabelClaim, requestID, slack.StylePrimary),
			convert,
			button(ActionClose, models.LabelClose, requestID, slack.StyleDanger),
		))

	case "Converted":
		if content.Issue == nil {
			break
		}
		issueID := req.ConversionID.String()
		blocks = insertBlock(blocks, 1, b.issueSection(issueID, content.Issue, content.Assignee))

		viewTicket := button(ActionViewTicket, models.LabelViewTicket, requestID, slack.StylePrimary)
		viewTicket.URL = b.links.Issue(issueID)
		blocks = append(blocks, slack.NewActionBlock(RequestActionsBlockID,
			button(ActionRefresh, models.LabelRefresh, requestID, ""),
			viewTicket,
		))

	case "Closed":
		blocks = append(blocks, slack.NewActionBlock(RequestActionsBlockID,
			button(ActionRefresh, models.LabelRefresh, requestID, ""),
			button(ActionReopen, models.LabelReopen, requestID, slack.StylePrimary),
		))

	default:
		blocks = append(blocks, slack.NewActionBlock(RequestActionsBlockID,
			button(ActionRefresh, models.LabelRefresh, requestID, ""),
		))
	}

	return Message{
		Channel: channel,
		Text:    req.Title,
		Blocks:  blocks,
	}
}

// BuildDenylisted renders the plain-text notice for a request that was
// closed because its title matched pattern. It carries no buttons.
func (b *RequestMessageBuilder) BuildDenylisted(channel string, req *models.Request, pattern string) Message {
	return Message{
		Channel: channel,
		Text: fmt.Sprintf(":accelo: *%s*\n\nThis request matched the denylist search `%s` and was automatically closed.",
			link(b.links.Request(req.ID.String()), req.Title), pattern),
	}
}

func (b *RequestMessageBuilder) fieldsSection(req *models.Request, standing, claimer string) *slack.SectionBlock {
	requester, company, email := emptyField, emptyField, emptyField
	if aff := req.Affiliation; aff != nil {
		if aff.Contact != nil {
			requester = link(b.links.Contact(aff.Contact.ID.String()), aff.Contact.Name())
		}
		if aff.Company != nil {
			company = link(b.links.Company(aff.Company.ID.String()), aff.Company.Name)
		}
		if aff.Email != "" {
			email = aff.Email
		}
	}

	fields := []*slack.TextBlockObject{
		markdown("*Status:*\n`" + standing + "`"),
		markdown("*Type:*\n" + req.TypeTitle()),
		markdown("*Claimed by:*\n" + claimer),
		markdown("*Requester:*\n" + requester),
		markdown("*Company:*\n" + company),
		markdown("*Email:*\n" + email),
	}
	return slack.NewSectionBlock(nil, fields, nil)
}

func (b *RequestMessageBuilder) issueSection(issueID string, issue *models.Issue, assignee string) *slack.SectionBlock {
	return markdownSection(fmt.Sprintf(":ticket: %s\nAssigned to: %s\nStatus: `%s`\n```%s...```",
		link(b.links.Issue(issueID), issue.Title),
		assignee,
		issue.StatusTitle(),
		truncate(issue.Description, issueSummaryLength),
	))
}

// NormalizeStanding upper-cases the first letter: "open" -> "Open".
func NormalizeStanding(standing string) string {
	r, size := utf8.DecodeRuneInString(standing)
	if r == utf8.RuneError {
		return standing
	}
	return string(unicode.ToUpper(r)) + standing[size:]
}

// Mention renders a Slack user mention.
func Mention(slackUserID string) string {
	return "<@" + slackUserID + ">"
}

func button(actionID, label, value string, style slack.Style) *slack.ButtonBlockElement {
	btn := slack.NewButtonBlockElement(actionID, value, slack.NewTextBlockObject(slack.PlainTextType, label, true, false))
	if style != "" {
		btn = btn.WithStyle(style)
	}
	return btn
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}

func markdownSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(markdown(text), nil, nil)
}

func link(url, text string) string {
	return "<" + url + "|" + text + ">"
}

func insertBlock(blocks []slack.Block, index int, block slack.Block) []slack.Block {
	blocks = append(blocks, nil)
	copy(blocks[index+1:], blocks[index:])
	blocks[index] = block
	return blocks
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	var b strings.Builder
	count := 0
	for _, r := range s {
		if count == n {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}
