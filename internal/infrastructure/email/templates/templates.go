// Package templates provides the HTML building blocks for transactional emails.
package templates

import "fmt"

// EmailLayoutProps configures the outer email layout.
type EmailLayoutProps struct {
	Content string
}

// GetEmailLayout wraps content in the shared email shell.
func GetEmailLayout(props EmailLayoutProps) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="margin:0;padding:0;background-color:#f4f7f4;font-family:Helvetica,Arial,sans-serif;">
    <table role="presentation" width="100%%" cellpadding="0" cellspacing="0">
      <tr>
        <td align="center" style="padding:24px;">
          <table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;padding:32px;">
            <tr><td style="font-size:20px;font-weight:bold;color:#2e7d32;padding-bottom:16px;">CropAlert</td></tr>
            <tr><td style="font-size:15px;color:#333333;line-height:1.5;">%s</td></tr>
            <tr><td style="font-size:12px;color:#999999;padding-top:24px;">You are receiving this email because you registered a CropAlert account.</td></tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>`, props.Content)
}

// ApprovalEmailProps configures the account approval email body.
type ApprovalEmailProps struct {
	Name string
}

// GetApprovalEmailContent renders the account approval email body.
func GetApprovalEmailContent(props ApprovalEmailProps) string {
	name := props.Name
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(`<p>Hi %s,</p>
<p>Your agronomist account has been approved. You can now sign in and publish
crop alerts; farmers near each alert who subscribe to the affected crop will be
notified in real time.</p>
<p>— The CropAlert team</p>`, name)
}
