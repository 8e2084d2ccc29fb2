package content

import (
	"strconv"
	"strings"
)

const recipientsPlaceholder = "{{recipients}}"

// Substitute replaces the literal {{...}} placeholders with recipient and
// campaign fields. Missing values become empty strings.
func Substitute(content string, ctx SendContext) string {
	c := ctx.Contact

	if strings.Contains(content, recipientsPlaceholder) && c.CompanyID != nil {
		content = strings.ReplaceAll(content, recipientsPlaceholder, recipientNames(ctx))
	}

	r := strings.NewReplacer(
		"{{first_name}}", c.FirstName,
		"{{last_name}}", c.LastName,
		"{{full_name}}", c.FullName(),
		"{{email}}", c.Email,
		"{{company}}", c.CompanyName,
		"{{job_title}}", c.JobTitle,
		"{{campaign_name}}", ctx.CampaignName,
		"{{campaign_id}}", strconv.FormatInt(ctx.CampaignID, 10),
		"{{date}}", ctx.now().Format("January 2, 2006"),
	)
	return r.Replace(content)
}

// recipientNames builds the formatted co-recipient list with the current
// recipient forced to the front. Contacts without an email are skipped.
func recipientNames(ctx SendContext) string {
	ordered := make([]Recipient, 0, len(ctx.Recipients)+1)
	if ctx.Contact.Email != "" {
		ordered = append(ordered, Recipient{First: ctx.Contact.FirstName, Last: ctx.Contact.LastName})
	}
	for _, rc := range ctx.Recipients {
		if rc.Email == "" || rc.ID == ctx.Contact.ID {
			continue
		}
		ordered = append(ordered, Recipient{First: rc.FirstName, Last: rc.LastName})
	}
	return FormatRecipientNames(ordered)
}

// Recipient is the minimal shape the name formatter needs.
type Recipient struct {
	First string
	Last  string
}

// FormatRecipientNames renders a human greeting list. First names are used
// alone unless shared by more than one recipient, in which case every
// holder of that name gets "First Last". Joins: two names use "A and B",
// three or more use "A, B and C".
func FormatRecipientNames(recipients []Recipient) string {
	counts := make(map[string]int, len(recipients))
	for _, r := range recipients {
		counts[r.First]++
	}

	names := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if counts[r.First] > 1 {
			names = append(names, strings.TrimSpace(r.First+" "+r.Last))
		} else {
			names = append(names, r.First)
		}
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
