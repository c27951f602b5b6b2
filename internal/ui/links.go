package ui

import (
	"net/url"
	"strings"
)

// Links builds browser URLs into one Accelo deployment.
type Links struct {
	base string
}

// NewLinks creates a link builder for webURL, e.g. https://acme.accelo.com.
func NewLinks(webURL string) *Links {
	return &Links{base: strings.TrimSuffix(webURL, "/")}
}

// Home is the deployment landing page.
func (l *Links) Home() string {
	return l.base
}

func (l *Links) Request(id string) string {
	return l.action("customer_request", url.Values{"id": {id}})
}

func (l *Links) Issue(id string) string {
	return l.action("view_issue", url.Values{"id": {id}})
}

func (l *Links) Contact(id string) string {
	return l.action("view_contact", url.Values{"id": {id}})
}

func (l *Links) Company(id string) string {
	return l.action("view_company", url.Values{"id": {id}})
}

// Convert opens the request-to-issue conversion form.
func (l *Links) Convert(id string) string {
	return l.base + "/?action=convert_request&id=" + url.QueryEscape(id) + "&conversion_id=1&no_auto_header=1"
}

// action keeps "action" first, which is how Accelo itself renders links.
func (l *Links) action(action string, params url.Values) string {
	return l.base + "/?action=" + url.QueryEscape(action) + "&" + params.Encode()
}
