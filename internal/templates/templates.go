// Package templates renders the auto-reply email body and the Telegram
// alert text from a message record. Rendering is treated as a pure
// formatting step; a template error is surfaced as a permanent failure
// by the caller.
package templates

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"smartmailer/internal/model"
)

const autoReplyHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Réponse automatique</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #2c3e50;">Merci pour votre message</h2>
        <p>Bonjour,</p>
        <p>J'ai bien reçu votre email concernant <strong>"{{.Subject}}"</strong>.</p>
        <p>Je vous remercie de m'avoir contacté. Je traiterai votre demande dans les plus brefs délais.</p>
        <p>Si votre demande est urgente, n'hésitez pas à me contacter par téléphone.</p>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="font-size: 12px; color: #666;">
            <em>Ce message a été envoyé automatiquement par SmartMailer.</em><br>
            <em>Date de réception: {{.ReceivedDate}}</em>
        </p>
        <p>Cordialement,<br>
        {{.SenderName}}</p>
    </div>
</body>
</html>`

const notificationText = `🚨 <b>Email Important Reçu</b>

📧 <b>Expéditeur:</b> {{.Sender}}
📝 <b>Sujet:</b> {{.Subject}}
📅 <b>Date:</b> {{.ReceivedDate}}

📄 <b>Aperçu:</b>
{{.Preview}}

<i>Notification SmartMailer</i>`

var (
	autoReplyTmpl    = htmltemplate.Must(htmltemplate.New("auto_reply").Parse(autoReplyHTML))
	notificationTmpl = texttemplate.Must(texttemplate.New("notification").Parse(notificationText))
)

// Renderer formats outbound payloads from message records.
type Renderer struct {
	senderName string
}

// NewRenderer creates a renderer signing auto-replies with senderName.
func NewRenderer(senderName string) *Renderer {
	return &Renderer{senderName: senderName}
}

// ReplySubject normalizes the reply subject, avoiding stacked prefixes.
func ReplySubject(original string) string {
	if strings.HasPrefix(original, "Re: ") {
		return original
	}
	return "Re: " + original
}

// RenderAutoReply formats the HTML auto-reply body for a message.
func (r *Renderer) RenderAutoReply(msg model.Message) (string, error) {
	data := struct {
		Subject      string
		ReceivedDate string
		SenderName   string
	}{
		Subject:      msg.Subject,
		ReceivedDate: msg.ReceivedAt.Format("02/01/2006 à 15:04"),
		SenderName:   r.senderName,
	}

	var b strings.Builder
	if err := autoReplyTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render auto-reply: %w", err)
	}
	return b.String(), nil
}

// RenderNotification formats the Telegram alert text for a message.
func (r *Renderer) RenderNotification(msg model.Message) (string, error) {
	data := struct {
		Sender       string
		Subject      string
		ReceivedDate string
		Preview      string
	}{
		Sender:       msg.Sender,
		Subject:      msg.Subject,
		ReceivedDate: msg.ReceivedAt.Format("02/01/2006 à 15:04"),
		Preview:      preview(msg.BodyText, 150),
	}

	var b strings.Builder
	if err := notificationTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("failed to render notification: %w", err)
	}
	return b.String(), nil
}

// preview truncates body text to at most n runes.
func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// TestMessage is the canned alert used to verify Telegram configuration.
func TestMessage() string {
	return fmt.Sprintf(`🧪 <b>Test SmartMailer</b>

Ce message confirme que votre configuration Telegram fonctionne correctement. (%s)

<i>SmartMailer est prêt à vous notifier des emails importants !</i>`,
		time.Now().Format(time.RFC3339))
}
