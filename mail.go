package hmsAuth

import (
	"fmt"
	"html"
	"time"

	"github.com/MrEthical07/hmsAuth/mailer"
)

func (e *Engine) verificationMessage(to, adminName, hospitalName, code string, ttl time.Duration) mailer.Message {
	minutes := int(ttl.Minutes())
	product := e.config.Email.ProductName
	return mailer.Message{
		To:      to,
		Subject: fmt.Sprintf("%s: verify your email", product),
		Text: fmt.Sprintf("Hello %s,\n\nUse code %s to verify the registration of %s. The code expires in %d minutes.\n",
			adminName, code, hospitalName, minutes),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>Use code <strong>%s</strong> to verify the registration of %s. The code expires in %d minutes.</p>",
			html.EscapeString(adminName), code, html.EscapeString(hospitalName), minutes),
	}
}

func (e *Engine) staffCredentialsMessage(to, name, employeeID, tempPassword string, reset bool) mailer.Message {
	product := e.config.Email.ProductName
	subject := fmt.Sprintf("%s: your staff account", product)
	intro := "An account has been created for you."
	if reset {
		subject = fmt.Sprintf("%s: your password was reset", product)
		intro = "Your password has been reset by an administrator."
	}
	return mailer.Message{
		To:      to,
		Subject: subject,
		Text: fmt.Sprintf("Hello %s,\n\n%s\nEmployee ID: %s\nTemporary password: %s\n\nChange it after signing in.\n",
			name, intro, employeeID, tempPassword),
		HTML: fmt.Sprintf("<p>Hello %s,</p><p>%s</p><p>Employee ID: %s<br>Temporary password: <code>%s</code></p><p>Change it after signing in.</p>",
			html.EscapeString(name), intro, html.EscapeString(employeeID), html.EscapeString(tempPassword)),
	}
}
