// Package report writes run artifacts: the workload table, the narrative
// spool and the final document.
package report

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
)

// Document formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Section headings.
const (
	OverviewHeading = "Workload Overview"
	DetailsHeading  = "Workload Details"
)

// Section is the documentation of one resource.
type Section struct {
	Title string
	Body  string
}

// Document is the final narrative report.
type Document struct {
	Title    string
	Overview string
	Details  []Section
}

// FromSpool builds the details sections from ordered spool entries.
func FromSpool(entries []SpoolEntry) []Section {
	out := make([]Section, 0, len(entries))
	for _, e := range entries {
		out = append(out, Section{Title: e.Name, Body: e.Text})
	}
	return out
}

// Markdown renders the document as Markdown.
func (d Document) Markdown() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", OverviewHeading, strings.TrimSpace(d.Overview))
	fmt.Fprintf(&b, "# %s\n\n", DetailsHeading)
	for _, s := range d.Details {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, strings.TrimSpace(s.Body))
	}
	return []byte(b.String())
}

// HTML renders the Markdown form into a standalone HTML page.
func (d Document) HTML() ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(d.Markdown(), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	title := d.Title
	if title == "" {
		title = OverviewHeading
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// Render renders in the given format.
func (d Document) Render(format string) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return d.Markdown(), nil
	case FormatHTML, "":
		return d.HTML()
	default:
		return nil, fmt.Errorf("unknown document format %q", format)
	}
}
