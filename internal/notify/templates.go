package notify

import (
	"fmt"
	"html"
)

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8" /></head>
<body style="font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937;">
  <div style="max-width: 560px; margin: 24px auto; background: #ffffff; border-radius: 12px; border: 1px solid #e5e7eb; padding: 20px;">
    <h2 style="margin-top: 0;">%s</h2>
    %s
  </div>
</body>
</html>`

func render(title, inner string) Message {
	return Message{Subject: "[Benefits] " + title, HTML: fmt.Sprintf(layout, html.EscapeString(title), inner)}
}

func button(link, label string) string {
	return fmt.Sprintf(`<p><a href="%s" style="display: inline-block; padding: 12px 20px; background: #2563eb; color: #fff; text-decoration: none; border-radius: 8px;">%s</a></p>`,
		html.EscapeString(link), html.EscapeString(label))
}

// LoginLink is sent when a user asks to log in.
func LoginLink(link string, ttlMinutes int) Message {
	inner := "<p>Use the button below to sign in to the benefits portal.</p>" +
		button(link, "Sign in") +
		fmt.Sprintf("<p>The link works once and expires in %d minutes.</p>", ttlMinutes)
	return render("Sign in", inner)
}

// Invite is sent to a user created by an administrator.
func Invite(link string, ttlMinutes int) Message {
	inner := "<p>An account on the benefits portal was created for you.</p>" +
		button(link, "Open the portal") +
		fmt.Sprintf("<p>The link works once and expires in %d minutes.</p>", ttlMinutes)
	return render("Welcome", inner)
}

// RequestSubmitted tells administrators that a request awaits review.
func RequestSubmitted(requestID int64, benefitName, requester, link string) Message {
	inner := fmt.Sprintf("<p>%s requested <b>%s</b>.</p>", html.EscapeString(requester), html.EscapeString(benefitName)) +
		button(link, fmt.Sprintf("Review request #%d", requestID))
	return render("New benefit request", inner)
}

// RequestStatusChanged tells the requester about a decision.
func RequestStatusChanged(benefitName, statusLabel string) Message {
	inner := fmt.Sprintf("<p>Your request for <b>%s</b> was updated: %s.</p>",
		html.EscapeString(benefitName), html.EscapeString(statusLabel))
	return render(statusLabel, inner)
}
