package format

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	bulletIconPattern  = regexp.MustCompile(`^- ([\x{1F300}-\x{1FAFF}])`)
	bulletStripPattern = regexp.MustCompile(`^- [\x{1F300}-\x{1FAFF}]\s*`)
)

// ParseBullet splits a "- " line into its optional emoji icon and its body. Only a
// single code point in U+1F300..U+1FAFF right after the dash counts as an icon; without
// one the line is returned unchanged as the body.
func ParseBullet(line string) (icon, body string, ok bool) {
	if !strings.HasPrefix(line, "- ") {
		return "", "", false
	}
	if m := bulletIconPattern.FindStringSubmatch(line); m != nil {
		icon = m[1]
	}
	return icon, bulletStripPattern.ReplaceAllString(line, ""), true
}

// Explanation renders chart analysis text. "###" lines become heading paragraphs and
// "- " lines become bullets with an optional icon. Blank lines are dropped and every
// remaining line is joined into one flat list, headings included.
func Explanation(content string) string {
	lines := strings.Split(content, "\n")
	formatted := make([]string, 0, len(lines))

	for _, line := range lines {
		var out string
		switch {
		case strings.HasPrefix(line, "###"):
			heading := strings.TrimSpace(strings.Replace(line, "###", "", 1))
			out = fmt.Sprintf(`<p class="explanation-heading">%s</p>`, emphasize(heading, "<strong>$1</strong>"))
		case strings.HasPrefix(line, "- "):
			icon, body, _ := ParseBullet(line)
			out = fmt.Sprintf(`<li><span>%s</span> %s</li>`, icon, emphasize(body, "<strong>$1</strong>"))
		default:
			out = emphasize(line, "<strong>$1</strong>")
		}

		if strings.TrimSpace(out) != "" {
			formatted = append(formatted, out)
		}
	}

	return "<ul>" + strings.Join(formatted, "</li><br><li>") + "</ul>"
}
