package utils

import (
	"strings"
	"unicode"
)

// LinkKind identifies which Accelo object a shared URL points at.
type LinkKind int

const (
	LinkUnknown LinkKind = iota
	LinkIssue
	LinkTask
	LinkActivity
)

func (k LinkKind) String() string {
	switch k {
	case LinkIssue:
		return "issue"
	case LinkTask:
		return "task"
	case LinkActivity:
		return "activity"
	case LinkUnknown:
		return "unknown"
	}
	return "unknown"
}

// linkIDWidth is how many characters after "id=" may hold the id.
const linkIDWidth = 7

// ExtractLinkID pulls the object id out of an Accelo URL.
//
// This is not a query parser: it takes the seven characters
// following the last "id=" and drops everything that is not a digit, so
// ".../?action=view_issue&id=00123abc" yields "00123". A URL without "id="
// is sliced from index 2, the same as a match at index -1.
func ExtractLinkID(link string) string {
	start := strings.LastIndex(link, "id=") + len("id=")
	end := start + linkIDWidth
	if start > len(link) {
		return ""
	}
	if end > len(link) {
		end = len(link)
	}

	var b strings.Builder
	for _, r := range link[start:end] {
		if unicode.IsDigit(r) && r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ClassifyLink decides the preview type from the action in the URL.
func ClassifyLink(link string) LinkKind {
	switch {
	case strings.Contains(link, "view_issue"), strings.Contains(link, "view_support_issue"):
		return LinkIssue
	case strings.Contains(link, "view_task"):
		return LinkTask
	case strings.Contains(link, "view_activity"):
		return LinkActivity
	default:
		return LinkUnknown
	}
}
