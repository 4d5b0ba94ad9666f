package agent

import (
	"fmt"
	"strings"

	"github.com/hairizuan-noorazman/scenario-runner/browser"
	"github.com/hairizuan-noorazman/scenario-runner/llm"
)

// operatorSystemPrompt is the system prompt for the browser operator.
const operatorSystemPrompt = `You operate a web browser to complete one instruction of an automated UI test.

Each turn you receive a screenshot of the current viewport, a numbered list of the visible interactive elements and the actions taken so far.
Your output must be a single JSON object with these fields:
- action: one of "click", "fill", "done", "fail"
- index: the number of the element to act on (click and fill only)
- value: the text to type (fill only)
- done: true when this action completes the instruction
- reason: a short explanation

Guidelines:
1. Act on exactly one element per turn
2. Prefer elements whose text, label or placeholder matches the instruction
3. Answer "done" once the screenshot shows the instruction has been carried out
4. Answer "fail" if the target cannot be found after looking carefully`

func buildPrompt(in Instruction, els []browser.Element, history []Interaction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<instruction>%s</instruction>\n", llm.SanitizeText(in.Goal))
	if in.Value != "" {
		fmt.Fprintf(&b, "<value>%s</value>\n", llm.SanitizeText(in.Value))
	}

	b.WriteString("\n<page_elements>\n")
	if len(els) == 0 {
		b.WriteString("(no interactive elements visible)\n")
	}
	b.WriteString(llm.FormatElements(els))
	b.WriteString("</page_elements>\n")

	if len(history) > 0 {
		b.WriteString("\n<history>\n")
		for _, h := range history {
			fmt.Fprintf(&b, "%d. %s", h.Iteration, h.Action)
			if h.Locator != "" {
				fmt.Fprintf(&b, " %s", h.Locator)
			}
			if h.Error != "" {
				fmt.Fprintf(&b, " failed: %s", h.Error)
			}
			b.WriteString("\n")
		}
		b.WriteString("</history>\n")
	}
	return b.String()
}
