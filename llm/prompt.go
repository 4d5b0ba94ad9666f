package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/usage"
)

// ErrNotFound is returned when the model reports that the target is not on the page.
var ErrNotFound = errors.New("model could not find the target element")

// Purposes recorded with each call's usage.
const (
	PurposeVision  = "selector_vision"
	PurposeObserve = "selector_observe"
	PurposeChunks  = "selector_chunks"
	PurposeVerdict = "visual_assertion"
	PurposeAgent   = "agent_step"
)

// locatorSystemPrompt describes the locator grammar understood by the browser layer.
const locatorSystemPrompt = `You locate elements on web pages for an automated UI test runner.

Locators you return must use one of these forms:
- a CSS selector, e.g. button#submit or input[name="email"]
- a CSS selector with a text filter, e.g. button:has-text("Sign in")
- an XPath expression prefixed with xpath=, e.g. xpath=//a[@href="/home"]
- text="Exact text" for an element whose whole text equals the value, or text=partial for contained text

Prefer stable attributes such as id, name, aria-label, placeholder, href or non-generated class names.
Avoid class names that look generated (random hashes or numbers).
Ignore elements hidden or styled for mobile layouts.
Answer with a single JSON object and nothing else.`

// SelectorQuery describes the element to locate and the page context
// available for it.
type SelectorQuery struct {
	Kind        string
	Element     string
	Description string
	Value       string
	Scenario    string
	Errors      []string
	Chunks      []string
	Screenshot  []byte
	Purpose     string
}

// SelectorPrompt builds the user prompt for a locator request. Author text is
// sanitised and fenced in tags.
func SelectorPrompt(q SelectorQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<scenario>%s</scenario>\n\n", SanitizeText(q.Scenario))

	b.WriteString("<target>\n")
	fmt.Fprintf(&b, "action: %s\n", SanitizeText(q.Kind))
	if q.Element != "" {
		fmt.Fprintf(&b, "element: %s\n", SanitizeText(q.Element))
	}
	if q.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", SanitizeText(q.Description))
	}
	b.WriteString("</target>\n\n")

	if len(q.Chunks) > 0 {
		b.WriteString("<html_chunks>\n")
		for i, chunk := range q.Chunks {
			fmt.Fprintf(&b, "--- chunk %d ---\n%s\n", i+1, chunk)
		}
		b.WriteString("</html_chunks>\n\n")
	}

	if len(q.Errors) > 0 {
		b.WriteString("<errors>\nThese locators were tried before and failed. Do not return them again.\n")
		for _, e := range q.Errors {
			fmt.Fprintf(&b, "- %s\n", SanitizeText(e))
		}
		b.WriteString("</errors>\n\n")
	}

	switch q.Kind {
	case "Fill Input":
		b.WriteString("Find the input field matching the target so a value can be typed into it. ")
		b.WriteString("Copy attribute values exactly, including leading and trailing spaces.\n")
	case "Upload File":
		b.WriteString("Find the file input, or the control that opens the file chooser, matching the target.\n")
	default:
		b.WriteString("Find the clickable element matching the target. It may be a button, link, tile or any element styled to be clicked. ")
		b.WriteString("Do not pick generic confirmation buttons such as Continue or Next unless the target names them.\n")
	}
	if len(q.Screenshot) > 0 {
		b.WriteString("Use the attached screenshot of the current viewport to pick the right element.\n")
	}
	b.WriteString(`Respond with {"selector": "<locator>"}. If the element is not present, respond with {"selector": "", "found": false}.`)
	return b.String()
}

type selectorAnswer struct {
	Selector string `json:"selector"`
	Found    *bool  `json:"found"`
}

// AskSelector asks model for a locator and records the call on tracker.
func AskSelector(ctx context.Context, model Model, tracker *usage.Tracker, q SelectorQuery) (string, error) {
	purpose := q.Purpose
	if purpose == "" {
		purpose = PurposeVision
	}
	resp, err := model.Complete(ctx, Request{
		System:    locatorSystemPrompt,
		Prompt:    SelectorPrompt(q),
		Image:     q.Screenshot,
		MaxTokens: 300,
		Purpose:   purpose,
	})
	if err != nil {
		return "", err
	}
	tracker.Record(resp.Usage)

	var ans selectorAnswer
	if err := DecodeJSON(resp.Text, &ans); err != nil {
		// A bare locator is accepted as well.
		sel := strings.Trim(StripFences(resp.Text), "`\" \n")
		if sel == "" || strings.ContainsAny(sel, "\n{") {
			return "", err
		}
		return sel, nil
	}
	sel := strings.TrimSpace(ans.Selector)
	if (ans.Found != nil && !*ans.Found) || sel == "" {
		return "", ErrNotFound
	}
	return sel, nil
}

// FormatElements renders an element inventory, one element per line, as
// referenced by index in observation and agent prompts.
func FormatElements(els []browser.Element) string {
	var b strings.Builder
	for _, el := range els {
		fmt.Fprintf(&b, "[%d] <%s", el.Index, el.Tag)
		for _, attr := range []struct{ k, v string }{
			{"type", el.Type},
			{"role", el.Role},
			{"name", el.Name},
			{"aria-label", el.AriaLabel},
			{"placeholder", el.Placeholder},
		} {
			if attr.v != "" {
				fmt.Fprintf(&b, " %s=%q", attr.k, attr.v)
			}
		}
		b.WriteString(">")
		if el.Text != "" {
			b.WriteString(" ")
			b.WriteString(el.Text)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// AskElement asks model to pick the element matching q from an inventory and
// returns its index. No screenshot is sent.
func AskElement(ctx context.Context, model Model, tracker *usage.Tracker, q SelectorQuery, els []browser.Element) (int, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "<target>\naction: %s\n", SanitizeText(q.Kind))
	if q.Element != "" {
		fmt.Fprintf(&b, "element: %s\n", SanitizeText(q.Element))
	}
	if q.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", SanitizeText(q.Description))
	}
	b.WriteString("</target>\n\n<page_elements>\n")
	b.WriteString(FormatElements(els))
	b.WriteString("</page_elements>\n\n")
	b.WriteString(`Pick the element that best matches the target. Respond with {"index": <number>}, or {"index": -1} if none matches.`)

	resp, err := model.Complete(ctx, Request{
		System:    "You map natural-language UI targets to elements of a web page. Answer with a single JSON object.",
		Prompt:    b.String(),
		MaxTokens: 100,
		Purpose:   PurposeObserve,
	})
	if err != nil {
		return -1, err
	}
	tracker.Record(resp.Usage)

	var ans struct {
		Index *int `json:"index"`
	}
	if err := DecodeJSON(resp.Text, &ans); err != nil {
		return -1, err
	}
	if ans.Index == nil || *ans.Index < 0 || *ans.Index >= len(els) {
		return -1, ErrNotFound
	}
	return *ans.Index, nil
}

// verdictSuffix is appended to every assertion question.
const verdictSuffix = " only answer in true or false dont elaborate your answer"

// AskVerdict asks a yes/no question about a screenshot and returns the raw answer.
func AskVerdict(ctx context.Context, model Model, tracker *usage.Tracker, question string, screenshot []byte) (string, error) {
	resp, err := model.Complete(ctx, Request{
		Prompt:    SanitizeText(question) + verdictSuffix,
		Image:     screenshot,
		MaxTokens: 300,
		Purpose:   PurposeVerdict,
	})
	if err != nil {
		return "", err
	}
	tracker.Record(resp.Usage)
	return strings.TrimSpace(resp.Text), nil
}
