// Package action maps a classification verdict onto exactly one
// downstream action: normal messages get an automated reply, important
// messages get an urgent chat notification.
package action

import (
	"smartmailer/internal/model"
	"smartmailer/internal/templates"
)

// Kind discriminates the routed action.
type Kind int

const (
	KindNoOp Kind = iota
	KindAutoReply
	KindNotify
)

// Action is the routed downstream action with its rendered payload.
type Action struct {
	Kind Kind

	// Auto-reply payload.
	To       string
	Subject  string
	HTMLBody string

	// Notification payload.
	AlertText string
}

// Taken returns the action_taken value recorded on success.
func (a Action) Taken() model.Action {
	switch a.Kind {
	case KindAutoReply:
		return model.ActionAutoReplySent
	case KindNotify:
		return model.ActionNotificationSent
	default:
		return model.ActionNone
	}
}

// Router builds actions from classified messages. Payload construction
// is delegated to the template renderer; a rendering error is reported
// by Route and treated as a permanent dispatch failure.
type Router struct {
	renderer         *templates.Renderer
	autoReplyEnabled bool
}

// NewRouter creates an action router.
func NewRouter(renderer *templates.Renderer, autoReplyEnabled bool) *Router {
	return &Router{renderer: renderer, autoReplyEnabled: autoReplyEnabled}
}

// Route decides the action for a message given its category.
func (r *Router) Route(msg model.Message, category model.Category) (Action, error) {
	switch category {
	case model.CategoryImportant:
		text, err := r.renderer.RenderNotification(msg)
		if err != nil {
			return Action{}, err
		}
		return Action{Kind: KindNotify, AlertText: text}, nil

	default:
		if !r.autoReplyEnabled {
			return Action{Kind: KindNoOp}, nil
		}
		body, err := r.renderer.RenderAutoReply(msg)
		if err != nil {
			return Action{}, err
		}
		return Action{
			Kind:     KindAutoReply,
			To:       msg.Sender,
			Subject:  templates.ReplySubject(msg.Subject),
			HTMLBody: body,
		}, nil
	}
}
