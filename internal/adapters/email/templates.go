package email

import (
	"fmt"

	"loyaltyloop/internal/adapters/markdown"
)

const resetPasswordBody = `Hi,

Someone asked to reset the password for **%s** on LoyaltyLoop.

[Choose a new password](%s)

The link expires in one hour and stops working once the password changes.
If you didn't ask for this you can ignore this email.
`

// ResetPasswordMessage builds the reset email for to with the given action link.
func ResetPasswordMessage(to, link string) (SendRequest, error) {
	body := fmt.Sprintf(resetPasswordBody, to, link)
	html, err := markdown.Render(body)
	if err != nil {
		return SendRequest{}, fmt.Errorf("render reset email: %w", err)
	}
	return SendRequest{
		To:      []string{to},
		Subject: "Reset your LoyaltyLoop password",
		HTML:    html,
		Text:    body,
	}, nil
}
