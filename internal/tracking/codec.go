package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
)

// Codec generates and validates the HMAC tokens carried by tracking and
// unsubscribe URLs. The two token spaces use distinct keyed constructions
// and are never interchangeable.
type Codec struct {
	secret  []byte
	baseURL string // e.g. https://leads.example.com, no trailing slash
}

func NewCodec(secret, baseURL string) *Codec {
	return &Codec{secret: []byte(secret), baseURL: baseURL}
}

// Token returns the hex HMAC-SHA256 over "campaign:{id},contact:{id}".
func (c *Codec) Token(campaignID, contactID int64) string {
	return c.sign(fmt.Sprintf("campaign:%d,contact:%d", campaignID, contactID))
}

// Verify recomputes the token and compares in constant time.
func (c *Codec) Verify(token string, campaignID, contactID int64) bool {
	return hmac.Equal([]byte(token), []byte(c.Token(campaignID, contactID)))
}

// UnsubscribeToken returns the hex HMAC-SHA256 over
// "{campaignId}|{contactId}|{email}". It must never validate against Token.
func (c *Codec) UnsubscribeToken(campaignID, contactID int64, email string) string {
	return c.sign(fmt.Sprintf("%d|%d|%s", campaignID, contactID, email))
}

func (c *Codec) VerifyUnsubscribe(token string, campaignID, contactID int64, email string) bool {
	return hmac.Equal([]byte(token), []byte(c.UnsubscribeToken(campaignID, contactID, email)))
}

func (c *Codec) sign(msg string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// BaseURL exposes the tracking host, used to recognize already-rewritten
// links.
func (c *Codec) BaseURL() string { return c.baseURL }

// OpenURL builds the tracking-pixel URL. It carries no destination.
func (c *Codec) OpenURL(campaignID, contactID int64) string {
	return c.baseURL + "/track/open?" + c.idQuery(campaignID, contactID).Encode()
}

// ClickURL builds the redirect URL for dest, carried as URL-safe base64.
func (c *Codec) ClickURL(campaignID, contactID int64, dest string) string {
	q := c.idQuery(campaignID, contactID)
	q.Set("url", base64.URLEncoding.EncodeToString([]byte(dest)))
	return c.baseURL + "/track/click?" + q.Encode()
}

// UnsubscribeURL builds the footer unsubscribe link.
func (c *Codec) UnsubscribeURL(campaignID, contactID int64, email string) string {
	q := url.Values{}
	q.Set("campaign", strconv.FormatInt(campaignID, 10))
	q.Set("contact", strconv.FormatInt(contactID, 10))
	q.Set("token", c.UnsubscribeToken(campaignID, contactID, email))
	return c.baseURL + "/unsubscribe?" + q.Encode()
}

func (c *Codec) idQuery(campaignID, contactID int64) url.Values {
	q := url.Values{}
	q.Set("campaign", strconv.FormatInt(campaignID, 10))
	q.Set("contact", strconv.FormatInt(contactID, 10))
	q.Set("token", c.Token(campaignID, contactID))
	return q
}

// DecodeClickTarget reverses the url= parameter of a click URL.
func DecodeClickTarget(enc string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("decode click target: %w", err)
	}
	return string(b), nil
}
