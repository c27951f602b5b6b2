package models

// App tags accepted in the webhook "app" query parameter.
const (
	AppAccelo = "accelo"
	AppSlack  = "slack"
)

// EventKind is the closed set of inbound webhook events.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventRequestCreated
	EventRequestStatusChanged
	EventSlackInteraction
	EventSlackEvent
)

func (k EventKind) String() string {
	switch k {
	case EventRequestCreated:
		return "request_created"
	case EventRequestStatusChanged:
		return "request_status_changed"
	case EventSlackInteraction:
		return "interaction"
	case EventSlackEvent:
		return "event"
	case EventUnknown:
		return "unknown"
	}
	return "unknown"
}

// ClassifyEvent maps the app and type query parameters onto an EventKind.
// Unrecognised combinations return EventUnknown and are ignored by the caller.
func ClassifyEvent(app, eventType string) EventKind {
	switch app {
	case AppAccelo:
		switch eventType {
		case "request_created":
			return EventRequestCreated
		case "request_status_changed":
			return EventRequestStatusChanged
		}
	case AppSlack:
		switch eventType {
		case "interaction":
			return EventSlackInteraction
		case "event":
			return EventSlackEvent
		}
	}
	return EventUnknown
}

// ButtonAction is the closed set of buttons on a request message that call
// back into this service. URL buttons (Convert, View Ticket) never do.
type ButtonAction int

const (
	ButtonUnknown ButtonAction = iota
	ButtonRefresh
	ButtonClaim
	ButtonClose
	ButtonReopen
)

// Button labels as rendered on request messages.
const (
	LabelRefresh    = "Refresh"
	LabelClaim      = "Claim"
	LabelConvert    = "Convert"
	LabelClose      = "Close"
	LabelReopen     = "Re-Open"
	LabelViewTicket = "View Ticket"
)

// ParseButtonAction maps a clicked button label onto a ButtonAction.
func ParseButtonAction(label string) ButtonAction {
	switch label {
	case LabelRefresh:
		return ButtonRefresh
	case LabelClaim:
		return ButtonClaim
	case LabelClose:
		return ButtonClose
	case LabelReopen:
		return ButtonReopen
	}
	return ButtonUnknown
}

func (a ButtonAction) String() string {
	switch a {
	case ButtonRefresh:
		return LabelRefresh
	case ButtonClaim:
		return LabelClaim
	case ButtonClose:
		return LabelClose
	case ButtonReopen:
		return LabelReopen
	case ButtonUnknown:
		return "unknown"
	}
	return "unknown"
}

// ButtonClick is a click on one of the callback buttons of a request message.
type ButtonClick struct {
	Action      ButtonAction
	RequestID   string
	SlackUserID string
	Message     MessageRef
}
