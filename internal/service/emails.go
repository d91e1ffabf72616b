package service

import (
	"fmt"
	"html"
	"strings"
	"time"
)

type message struct {
	Subject string
	Text    string
	HTML    string
}

func activationMessage(username string, link string) message {
	name := html.EscapeString(username)
	href := html.EscapeString(link)
	return message{
		Subject: "Activate Your Account",
		Text:    fmt.Sprintf("Hello %s,\n\nPlease click the link to activate your account:\n%s", username, link),
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Welcome, %s</h2>
    <p>Please confirm your email address to activate your account.</p>
    <p><a href="%s" style="display: inline-block; padding: 12px 20px; background: #2563eb; color: #fff; text-decoration: none; border-radius: 6px;">Activate Account</a></p>
    <p style="font-size: 12px; color: #6b7280;">If the button does not work, copy this link into your browser:<br>%s</p>
  </div>
</body>
</html>`, name, href, href),
	}
}

func otpMessage(username string, code string, ttl time.Duration) message {
	name := html.EscapeString(username)
	expiry := humanizeMinutes(ttl)
	return message{
		Subject: "Your Two-Factor Authentication Code",
		Text:    fmt.Sprintf("Hello %s,\n\nYour verification code is: %s\nIt will expire in %s.", username, code, expiry),
		HTML: fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Hello %s</h2>
    <p>Your verification code is:</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>It will expire in %s.</p>
  </div>
</body>
</html>`, name, code, expiry),
	}
}

func activationLink(baseURL string, uid string, token string) string {
	return fmt.Sprintf("%s/activate/%s/%s", strings.TrimRight(baseURL, "/"), uid, token)
}

func humanizeMinutes(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
