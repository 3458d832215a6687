// Package format turns upstream chat text into display markup.
package format

import "regexp"

var emphasisPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

func emphasize(s, replacement string) string {
	return emphasisPattern.ReplaceAllString(s, replacement)
}
