package email

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"

	"akita-notify-go/internal/models"
)

var notificationTmpl = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #f7f3ee; padding: 24px;">
  <div style="max-width: 560px; margin: 0 auto; background: #ffffff; border-radius: 8px; padding: 24px;">
    <h2 style="color: #8b2e16; margin-top: 0;">{{.Title}}</h2>
    <p style="color: #333333; line-height: 1.5;">{{.Message}}</p>
    <p><a href="{{.Link}}" style="display: inline-block; background: #8b2e16; color: #ffffff; padding: 10px 18px; border-radius: 4px; text-decoration: none;">View on Akita Connect</a></p>
    <hr style="border: none; border-top: 1px solid #eeeeee;">
    <p style="color: #888888; font-size: 12px;">You are receiving this because email notifications are enabled for this activity. Change this in <a href="{{.SettingsLink}}">notification settings</a>.</p>
  </div>
</body>
</html>`))

// Render builds the subject and HTML body for an event.
func Render(ev models.NotificationEvent, baseURL string) (subject, body string, err error) {
	ev = ev.WithDefaults()
	var buf bytes.Buffer
	err = notificationTmpl.Execute(&buf, map[string]string{
		"Title":        ev.Title,
		"Message":      ev.Message,
		"Link":         AbsoluteLink(baseURL, ev.Link),
		"SettingsLink": AbsoluteLink(baseURL, "/settings/notifications"),
	})
	if err != nil {
		return "", "", err
	}
	return "Akita Connect: " + ev.Title, buf.String(), nil
}

// AbsoluteLink resolves an in-app path against the public site URL. Absolute
// links pass through.
func AbsoluteLink(baseURL, link string) string {
	if link == "" {
		link = models.DefaultLink
	}
	if u, err := url.Parse(link); err == nil && u.IsAbs() {
		return link
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(link, "/")
}
