// Package notify emails run reports.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"
)

// Sender delivers an HTML email.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// NopSender drops every message.
type NopSender struct{}

func (NopSender) Send(context.Context, string, string, string) error { return nil }

// Report is the content of a run report email.
type Report struct {
	Name       string
	Success    bool
	RunID      string
	Link       string
	Cost       float64
	Screenshot string
	RanAt      time.Time
}

// Subject returns the email subject for r.
func (r Report) Subject() string {
	if r.Success {
		return "Test Execution Report: " + r.Name
	}
	return "Test Execution Failed: " + r.Name
}

var reportTemplate = template.Must(template.New("report").Parse(`<p>Hello,</p>
{{if .Success}}<p>Test run successfully; costed ${{printf "%.2f" .Cost}} ran at {{.RanAt.Format "01/02/2006 03:04 PM"}}</p>
{{else}}<p>Test run failed; ran at {{.RanAt.Format "01/02/2006 03:04 PM"}}</p>
{{end}}{{if .Link}}<p>see details <a href="{{.Link}}">{{.Link}}</a></p>
{{end}}{{if .Screenshot}}<p><img src="{{.Screenshot}}" alt="Last Screenshot" style="max-width: 100%; border-radius: 5px; border: 1px solid #ccc;"></p>
{{end}}<p>Run {{.RunID}}</p>
`))

// RenderReport renders r as HTML.
func RenderReport(r Report) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return buf.String(), nil
}
