package format

import (
	"fmt"
	"regexp"
	"strings"
)

var stepPattern = regexp.MustCompile(`^(\d+)\.\s*(.*?)\r?$`)

// Message renders numbered lines as grouped step blocks. A group closes at the first
// non-numbered line and a later numbered line opens a new group. Other lines are kept
// with their newline. **text** becomes <strong> across the whole output.
func Message(content string) string {
	var b strings.Builder
	inSteps := false

	for _, line := range strings.Split(content, "\n") {
		if m := stepPattern.FindStringSubmatch(line); m != nil {
			if !inSteps {
				b.WriteString(`<div class="steps">`)
				inSteps = true
			}
			fmt.Fprintf(&b, `<div class="step"><span class="step-index">%s</span><div class="step-body">%s</div></div>`, m[1], m[2])
			continue
		}

		if inSteps {
			b.WriteString(`</div>`)
			inSteps = false
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if inSteps {
		b.WriteString(`</div>`)
	}

	return emphasize(b.String(), `<strong class="font-semibold">$1</strong>`)
}
