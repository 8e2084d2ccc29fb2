package content

import (
	"regexp"
	"strings"
)

var (
	htmlTagRe  = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)
	htmlRootRe = regexp.MustCompile(`(?i)<html[\s>]`)
	bodyRe     = regexp.MustCompile(`(?is)<body[^>]*>(.*)</body>`)
)

// Sanitize normalizes arbitrary template input into a full HTML document.
// Plain text is paragraph-wrapped; an HTML fragment is re-homed into the
// document shell; a document that already has an <html> root passes through
// unchanged, which makes the stage idempotent.
func Sanitize(content string, _ SendContext) string {
	if htmlRootRe.MatchString(content) {
		return content
	}

	if !htmlTagRe.MatchString(content) {
		return wrapDocument(paragraphize(content))
	}

	inner := content
	if m := bodyRe.FindStringSubmatch(content); m != nil {
		inner = m[1]
	}
	return wrapDocument(strings.TrimSpace(inner))
}

// paragraphize wraps each non-blank line in <p> and turns blank lines into
// <br>.
func paragraphize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString("<br>\n")
			continue
		}
		b.WriteString("<p>")
		b.WriteString(line)
		b.WriteString("</p>\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func wrapDocument(body string) string {
	return `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Email</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; font-size: 14px; line-height: 1.5; color: #333333; margin: 0; padding: 16px; }
p { margin: 0 0 12px 0; }
</style>
</head>
<body>
` + body + `
</body>
</html>`
}
