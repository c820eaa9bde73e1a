package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/innkeep/hotel-system/internal/core/ports"
)

// Email is a rendered message ready for a transport.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

type layout struct {
	subject *texttemplate.Template
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// Renderer turns a template name and its parameters into an Email.
type Renderer struct {
	siteName string
	layouts  map[ports.Template]layout
}

// NewRenderer parses every known template. It panics on a malformed template
// since the set is fixed at compile time.
func NewRenderer(siteName string) *Renderer {
	r := &Renderer{siteName: siteName, layouts: make(map[ports.Template]layout, len(catalog))}
	for name, src := range catalog {
		r.layouts[name] = layout{
			subject: texttemplate.Must(texttemplate.New(string(name)).Option("missingkey=zero").Parse(src.subject)),
			text:    texttemplate.Must(texttemplate.New(string(name)).Option("missingkey=zero").Parse(src.text)),
			html:    htmltemplate.Must(htmltemplate.New(string(name)).Option("missingkey=zero").Parse(htmlShell(src.html))),
		}
	}
	return r
}

// Render builds the message for tmpl addressed to to.
func (r *Renderer) Render(to string, tmpl ports.Template, params map[string]string) (Email, error) {
	l, ok := r.layouts[tmpl]
	if !ok {
		return Email{}, fmt.Errorf("render: unknown template %q", tmpl)
	}
	data := make(map[string]string, len(params)+1)
	for k, v := range params {
		data[k] = v
	}
	data["site"] = r.siteName

	var subject, text, html bytes.Buffer
	if err := l.subject.Execute(&subject, data); err != nil {
		return Email{}, fmt.Errorf("render %s subject: %w", tmpl, err)
	}
	if err := l.text.Execute(&text, data); err != nil {
		return Email{}, fmt.Errorf("render %s text: %w", tmpl, err)
	}
	if err := l.html.Execute(&html, data); err != nil {
		return Email{}, fmt.Errorf("render %s html: %w", tmpl, err)
	}
	return Email{To: to, Subject: subject.String(), TextBody: text.String(), HTMLBody: html.String()}, nil
}

type source struct {
	subject string
	text    string
	html    string
}

var catalog = map[ports.Template]source{
	ports.TemplateEmailOTP: {
		subject: "Your {{.site}} verification code",
		text: "Hi {{.name}},\n\nYour verification code is: {{.code}}\n\n" +
			"It expires in {{.expires_in}}. If you did not create an account, ignore this email.\n",
		html: `<p>Hi {{.name}},</p>
<p>Your verification code is:</p>
<div style="background:#f3f4f6;border-radius:8px;padding:24px;text-align:center;">
  <span style="font-size:32px;font-weight:700;letter-spacing:8px;font-family:'Courier New',monospace;">{{.code}}</span>
</div>
<p style="color:#6b7280;">It expires in {{.expires_in}}. If you did not create an account, ignore this email.</p>`,
	},
	ports.TemplateInvitation: {
		subject: "You're invited to join {{.site}}",
		text: "You have been invited to join {{.site}} as {{.role}}.\n\n" +
			"Create your account here:\n{{.link}}\n\nThis invitation expires in {{.expires_in}}.\n",
		html: `<p>You have been invited to join {{.site}} as <strong>{{.role}}</strong>.</p>
<p><a href="{{.link}}" style="display:inline-block;padding:14px 40px;background:#4f46e5;color:#fff;text-decoration:none;border-radius:6px;">Accept invitation</a></p>
<p style="color:#6b7280;">This invitation expires in {{.expires_in}}.</p>`,
	},
	ports.TemplatePasswordReset: {
		subject: "Set your {{.site}} password",
		text: "Hi {{.name}},\n\nUse the link below to set a new password:\n{{.link}}\n\n" +
			"The link expires in {{.expires_in}}. If you did not request it, ignore this email.\n",
		html: `<p>Hi {{.name}},</p>
<p><a href="{{.link}}" style="display:inline-block;padding:14px 40px;background:#4f46e5;color:#fff;text-decoration:none;border-radius:6px;">Set password</a></p>
<p style="color:#6b7280;">The link expires in {{.expires_in}}. If you did not request it, ignore this email.</p>`,
	},
	ports.TemplateApprovalRequested: {
		subject: "{{.site}}: {{.name}} is waiting for approval",
		text:    "{{.name}} <{{.email}}> verified their email and requests {{.role}} access.\n",
		html:    `<p><strong>{{.name}}</strong> &lt;{{.email}}&gt; verified their email and requests <strong>{{.role}}</strong> access.</p>`,
	},
	ports.TemplateAccountApproved: {
		subject: "Your {{.site}} account is approved",
		text:    "Hi {{.name}},\n\nYour account has been approved with the {{.role}} role. You can sign in now.\n",
		html:    `<p>Hi {{.name}},</p><p>Your account has been approved with the <strong>{{.role}}</strong> role. You can sign in now.</p>`,
	},
	ports.TemplatePasswordChanged: {
		subject: "Your {{.site}} password was changed",
		text: "Hi {{.name}},\n\nYour password was changed and every session was signed out.\n" +
			"If this wasn't you, reset your password immediately.\n",
		html: `<p>Hi {{.name}},</p><p>Your password was changed and every session was signed out.</p>
<p style="color:#6b7280;">If this wasn't you, reset your password immediately.</p>`,
	},
}

func htmlShell(body string) string {
	return `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><meta name="viewport" content="width=device-width, initial-scale=1.0"></head>
<body style="margin:0;padding:0;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Arial,sans-serif;background:#f3f4f6;">
<table role="presentation" width="100%" cellspacing="0" cellpadding="0"><tr><td align="center" style="padding:40px 20px;">
<table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width:480px;background:#fff;border-radius:8px;">
<tr><td style="padding:32px 32px 24px;text-align:center;border-bottom:1px solid #e5e7eb;"><h1 style="margin:0;font-size:24px;color:#4f46e5;">{{.site}}</h1></td></tr>
<tr><td style="padding:32px;font-size:16px;color:#374151;line-height:1.5;">` + body + `</td></tr>
</table></td></tr></table>
</body>
</html>`
}
