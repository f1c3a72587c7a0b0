// Package mailer composes and delivers the pipeline's notification
// emails: an acceptance notice when an image enters the catalog and a
// rejection notice when an object is removed.
package mailer

import (
	"bytes"
	"context"
	"html/template"

	"github.com/c360/photoflow/errors"
)

// Message is one email ready for delivery
type Message struct {
	To       string
	From     string
	Subject  string
	HTMLBody string
}

// Mailer delivers messages. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var acceptanceTmpl = template.Must(template.New("acceptance").Parse(
	`<html><body>` +
		`<p>Good news! Your image <strong>{{.Filename}}</strong> was accepted and added to the catalog.</p>` +
		`</body></html>`))

var rejectionTmpl = template.Must(template.New("rejection").Parse(
	`<html><body>` +
		`<p>Your image <strong>{{.Filename}}</strong> was removed from the image store.</p>` +
		`<p>Its catalog entry has been scheduled for removal.</p>` +
		`</body></html>`))

type templateData struct {
	Filename string
}

// AcceptanceMessage builds the email sent when an image is accepted
func AcceptanceMessage(from, to, filename string) (Message, error) {
	body, err := renderTemplate(acceptanceTmpl, filename)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		From:     from,
		Subject:  "Image accepted: " + filename,
		HTMLBody: body,
	}, nil
}

// RejectionMessage builds the email sent when an image is removed
func RejectionMessage(from, to, filename string) (Message, error) {
	body, err := renderTemplate(rejectionTmpl, filename)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		From:     from,
		Subject:  "Image removed: " + filename,
		HTMLBody: body,
	}, nil
}

func renderTemplate(tmpl *template.Template, filename string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Filename: filename}); err != nil {
		return "", errors.WrapInvalid(err, "Mailer", "render", "execute template")
	}
	return buf.String(), nil
}
