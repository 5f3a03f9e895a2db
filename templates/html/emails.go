package templates

import (
	"fmt"
	"html"
	"strings"
)

// renderShell wraps body HTML in the shared branded email layout. The subject
// is displayed in the header banner.
func renderShell(subject, bodyHTML string) string {
	safeSubject := html.EscapeString(subject)

	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f5f7; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #1d4ed8 0%%, #1e40af 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .code { font-size: 32px; letter-spacing: 8px; font-weight: 700; text-align: center; padding: 16px 0; color: #1d4ed8; }
    .button { display: inline-block; padding: 12px 28px; margin: 8px 6px; border-radius: 6px; color: #fff !important; text-decoration: none; font-weight: 600; }
    .approve { background-color: #16a34a; }
    .reject { background-color: #dc2626; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>&copy; Placement Cell</p>
      <p>This is an automated message, please do not reply.</p>
    </div>
  </div>
</body>
</html>`, safeSubject, safeSubject, bodyHTML)
}

// RenderGenericEmail generates branded HTML for a plain-text body. The body is
// HTML-escaped and newlines become <br> tags.
func RenderGenericEmail(subject, bodyContent string) string {
	escaped := html.EscapeString(bodyContent)
	return renderShell(subject, strings.ReplaceAll(escaped, "\n", "<br>"))
}

// RenderCode generates the HTML for a verification code email
func RenderCode(code, subject string) string {
	body := fmt.Sprintf(`<p>Use the code below to continue. It expires in 5 minutes.</p>
      <div class="code">%s</div>
      <p>If you did not request this code you can safely ignore this email.</p>`, html.EscapeString(code))
	return renderShell(subject, body)
}

// RenderApprovalRequest generates the HTML for the approve/reject link email
// sent to a representative when a registration is submitted.
func RenderApprovalRequest(reviewerName, studentName, registerNumber, department, year, approveLink, rejectLink string) string {
	body := fmt.Sprintf(`<p>Hi %s,</p>
      <p>A new registration is waiting for review:</p>
      <p><strong>%s</strong><br>
      Register number: %s<br>
      Department: %s, Year: %s</p>
      <p style="text-align:center;">
        <a class="button approve" href="%s">Approve</a>
        <a class="button reject" href="%s">Reject</a>
      </p>
      <p>The links above are personal to you and expire in 3 days. If another
      representative has already acted on this registration, clicking either
      link will simply tell you so.</p>`,
		html.EscapeString(reviewerName), html.EscapeString(studentName),
		html.EscapeString(registerNumber), html.EscapeString(department),
		html.EscapeString(year), approveLink, rejectLink)
	return renderShell("Registration Approval Requested", body)
}

// RenderRegistrationApproved generates the welcome email HTML for an approved registrant
func RenderRegistrationApproved(studentName string, loginLink string) string {
	body := fmt.Sprintf(`<p>Hi %s,</p>
      <p>Your registration has been approved. You can now sign in to the
      placement portal and complete your profile.</p>
      <p style="text-align:center;"><a class="button approve" href="%s">Open Portal</a></p>`,
		html.EscapeString(studentName), loginLink)
	return renderShell("Registration Approved", body)
}

// RenderRegistrationRejected generates the rejection email HTML sent to the
// registrant, including the reviewer's contact so they can follow up and
// re-register.
func RenderRegistrationRejected(studentName, reviewerName, reviewerEmail string) string {
	body := fmt.Sprintf(`<p>Hi %s,</p>
      <p>Your registration was not approved. If you believe this is a mistake,
      contact %s (%s) and submit a new registration afterwards.</p>`,
		html.EscapeString(studentName), html.EscapeString(reviewerName), html.EscapeString(reviewerEmail))
	return renderShell("Registration Rejected", body)
}

// RenderReviewerOutcome generates the informational HTML sent to the other
// eligible reviewers once one of them has resolved a registration.
func RenderReviewerOutcome(reviewerName, studentName, registerNumber, action, actedBy string) string {
	body := fmt.Sprintf(`<p>Hi %s,</p>
      <p>The registration for <strong>%s</strong> (register number %s) was
      already %sd by %s. No further action is needed; your link for this
      registration is no longer valid.</p>`,
		html.EscapeString(reviewerName), html.EscapeString(studentName),
		html.EscapeString(registerNumber), html.EscapeString(action), html.EscapeString(actedBy))
	return renderShell("Registration Already Reviewed", body)
}
