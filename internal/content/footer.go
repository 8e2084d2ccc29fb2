package content

import (
	"strings"

	"github.com/doug7410/samplepal-leads-sub001/internal/tracking"
)

// footerMarker identifies an already-injected footer.
const footerMarker = `class="email-footer"`

// InjectFooter appends the application footer with the unsubscribe link,
// before the closing body tag when one exists. Content already carrying the
// footer marker passes through unchanged.
func InjectFooter(codec *tracking.Codec, appName string) Stage {
	return func(content string, ctx SendContext) string {
		if strings.Contains(content, footerMarker) {
			return content
		}

		unsubURL := codec.UnsubscribeURL(ctx.CampaignID, ctx.Contact.ID, ctx.Contact.Email)
		footer := `<hr style="border:none;border-top:1px solid #dddddd;margin:24px 0 12px 0;">
<div class="email-footer" style="font-size:12px;color:#999999;">
<p>` + appName + `</p>
<p><a href="` + unsubURL + `" style="color:#999999;">Unsubscribe</a></p>
</div>`
		return insertBeforeBodyClose(content, footer)
	}
}
