package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Request standings as sent by Accelo (lower case).
const (
	StandingPending   = "pending"
	StandingOpen      = "open"
	StandingConverted = "converted"
	StandingClosed    = "closed"
)

// Against types used by tasks and activities.
const (
	AgainstIssue = "issue"

	OwnerStaff       = "staff"
	OwnerAffiliation = "affiliation"
)

// ID is an Accelo identifier. The API is inconsistent about sending ids as
// JSON numbers or strings, and sends null for missing links.
type ID string

// UnmarshalJSON accepts "12", 12 and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("accelo id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("accelo id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is absent or the literal 0 Accelo uses for
// "no link".
func (id ID) IsZero() bool {
	return id == "" || id == "0"
}

// Object is an untyped Accelo record, used for sub-resources this service
// only passes through.
type Object map[string]any

// Filters is passed through to Accelo as the _filters payload.
type Filters map[string]any

// Count is the body of every */count endpoint.
type Count struct {
	Count ID `json:"count"`
}

// Int converts the count, which Accelo sends as a string.
func (c Count) Int() (int, error) {
	if c.Count == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(string(c.Count))
	if err != nil {
		return 0, fmt.Errorf("%w: count %q", ErrMalformedResponse, c.Count)
	}
	return n, nil
}

// unmarshalLink decodes a linked object that Accelo sends either expanded
// ({"id": ..}) or as a bare id, depending on the requested _fields.
func unmarshalLink(data []byte, id *ID, expanded any) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		return json.Unmarshal(data, expanded)
	}
	return id.UnmarshalJSON(data)
}

// TypeRef is an expanded type, status or class link.
type TypeRef struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
}

func (t *TypeRef) UnmarshalJSON(data []byte) error {
	type plain TypeRef
	return unmarshalLink(data, &t.ID, (*plain)(t))
}

type Contact struct {
	ID        ID     `json:"id"`
	Firstname string `json:"firstname"`
	Surname   string `json:"surname"`
	Email     string `json:"email,omitempty"`
}

func (c *Contact) UnmarshalJSON(data []byte) error {
	type plain Contact
	return unmarshalLink(data, &c.ID, (*plain)(c))
}

// Name returns "Firstname Surname".
func (c *Contact) Name() string {
	return strings.TrimSpace(c.Firstname + " " + c.Surname)
}

type Company struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

func (c *Company) UnmarshalJSON(data []byte) error {
	type plain Company
	return unmarshalLink(data, &c.ID, (*plain)(c))
}

// Affiliation links a contact to a company. Both links are optional.
type Affiliation struct {
	ID      ID       `json:"id"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone,omitempty"`
	Contact *Contact `json:"contact,omitempty"`
	Company *Company `json:"company,omitempty"`
}

func (a *Affiliation) UnmarshalJSON(data []byte) error {
	type plain Affiliation
	return unmarshalLink(data, &a.ID, (*plain)(a))
}

type Staff struct {
	ID        ID     `json:"id"`
	Firstname string `json:"firstname"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Username  string `json:"username,omitempty"`
}

func (s *Staff) UnmarshalJSON(data []byte) error {
	type plain Staff
	return unmarshalLink(data, &s.ID, (*plain)(s))
}

// Request is an inbound support request prior to conversion into an issue.
type Request struct {
	ID           ID           `json:"id"`
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	Standing     string       `json:"standing"`
	ConversionID ID           `json:"conversion_id"`
	Claimer      ID           `json:"claimer"`
	Type         *TypeRef     `json:"type,omitempty"`
	Affiliation  *Affiliation `json:"affiliation,omitempty"`
}

// TypeTitle returns the request type title, or "" when type was not expanded.
func (r *Request) TypeTitle() string {
	if r.Type == nil {
		return ""
	}
	return r.Type.Title
}

// Issue is a tracked unit of work, usually converted from a request.
// Assignee is a staff id unless expanded with assignee().
type Issue struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Standing    string   `json:"standing"`
	Status      *TypeRef `json:"status,omitempty"`
	Assignee    *Staff   `json:"assignee,omitempty"`
	Contact     *Contact `json:"contact,omitempty"`
	Company     *Company `json:"company,omitempty"`
}

// StatusTitle returns the expanded status title or "".
func (i *Issue) StatusTitle() string {
	if i.Status == nil {
		return ""
	}
	return i.Status.Title
}

// AssigneeID returns the assignee staff id or "".
func (i *Issue) AssigneeID() ID {
	if i.Assignee == nil {
		return ""
	}
	return i.Assignee.ID
}

type Task struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	AgainstType string   `json:"against_type"`
	AgainstID   ID       `json:"against_id"`
	Assignee    ID       `json:"assignee"`
	Status      *TypeRef `json:"status,omitempty"`
	Contact     *Contact `json:"contact,omitempty"`
}

// StatusTitle returns the expanded status title or "".
func (t *Task) StatusTitle() string {
	if t.Status == nil {
		return ""
	}
	return t.Status.Title
}

type Activity struct {
	ID          ID     `json:"id"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	AgainstType string `json:"against_type"`
	AgainstID   ID     `json:"against_id"`
	OwnerType   string `json:"owner_type"`
	OwnerID     ID     `json:"owner_id"`
	Staff       ID     `json:"staff"`
}

// ProfileValue is a custom field value attached to any Accelo object.
type ProfileValue struct {
	ID             ID     `json:"id"`
	FieldName      string `json:"field_name"`
	FieldType      string `json:"field_type"`
	Value          string `json:"value"`
	LinkID         ID     `json:"link_id"`
	LinkType       string `json:"link_type"`
	ProfileFieldID ID     `json:"profile_field_id"`
}

// Envelope is the wrapper around every Accelo API response.
type Envelope struct {
	Response json.RawMessage `json:"response"`
	Meta     struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"meta"`
}
