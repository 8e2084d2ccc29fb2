package content

import (
	"regexp"
	"strings"

	"github.com/doug7410/samplepal-leads-sub001/internal/tracking"
)

var hrefRe = regexp.MustCompile(`(?i)(<a\b[^>]*?href\s*=\s*")([^"]*)(")`)

// InjectTracking rewrites anchor hrefs into click-tracking redirects and
// appends the open-tracking pixel. mailto: links, already-rewritten links
// and the unsubscribe link are left alone, so the stage is idempotent.
func InjectTracking(codec *tracking.Codec) Stage {
	return func(content string, ctx SendContext) string {
		clickPrefix := codec.BaseURL() + "/track/"
		unsubPrefix := codec.BaseURL() + "/unsubscribe"

		content = hrefRe.ReplaceAllStringFunc(content, func(m string) string {
			parts := hrefRe.FindStringSubmatch(m)
			href := parts[2]
			if href == "" ||
				strings.HasPrefix(strings.ToLower(href), "mailto:") ||
				strings.HasPrefix(href, clickPrefix) ||
				strings.HasPrefix(href, unsubPrefix) {
				return m
			}
			return parts[1] + codec.ClickURL(ctx.CampaignID, ctx.Contact.ID, href) + parts[3]
		})

		openURL := codec.OpenURL(ctx.CampaignID, ctx.Contact.ID)
		if strings.Contains(content, openURL) {
			return content
		}
		pixel := `<img src="` + openURL + `" width="1" height="1" style="display:none;max-height:1px;max-width:1px;" alt="">`
		return insertBeforeBodyClose(content, pixel)
	}
}

var bodyCloseRe = regexp.MustCompile(`(?i)</body>`)

// insertBeforeBodyClose places html just before the closing body tag, or at
// the end when the content has no body tag.
func insertBeforeBodyClose(content, html string) string {
	if loc := bodyCloseRe.FindStringIndex(content); loc != nil {
		return content[:loc[0]] + html + "\n" + content[loc[0]:]
	}
	return content + html
}
