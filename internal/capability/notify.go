package capability

import (
	"context"
	"fmt"
)

// Sender delivers messages and files to a chat target. The gateway
// implements it; keeping the interface here lets the module stay
// transport-agnostic.
type Sender interface {
	Send(target, text string) error
	SendFile(target, path, caption string) error
}

// Notifier is the messaging module. The delivery target comes from the
// request context so plans never have to carry chat IDs.
type Notifier struct {
	sender Sender
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

func (n *Notifier) Register(r *Registry) error {
	funcs := map[string]Func{
		"send_message": {
			Description: "Send a text message back to the chat that issued the command.",
			Parameters: objSchema(map[string]any{
				"text": strProp("The message text"),
			}, []string{"text"}),
			Run: n.sendMessage,
		},
		"send_file": {
			Description: "Send a file from disk back to the chat that issued the command.",
			Parameters: objSchema(map[string]any{
				"path":    strProp("Absolute path of the file to send"),
				"caption": strProp("Optional caption"),
			}, []string{"path"}),
			Run: n.sendFile,
		},
	}
	for name, fn := range funcs {
		if err := r.Register("telegram", name, fn); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) sendMessage(ctx context.Context, args map[string]any) (map[string]any, error) {
	text, err := requireString(args, "text")
	if err != nil {
		return nil, err
	}
	target, ok := Target(ctx)
	if !ok {
		return nil, fmt.Errorf("no delivery target on this request")
	}
	if err := n.sender.Send(target, text); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return map[string]any{"text": "Message sent"}, nil
}

func (n *Notifier) sendFile(ctx context.Context, args map[string]any) (map[string]any, error) {
	path, err := requireString(args, "path")
	if err != nil {
		return nil, err
	}
	target, ok := Target(ctx)
	if !ok {
		return nil, fmt.Errorf("no delivery target on this request")
	}
	if err := n.sender.SendFile(target, path, argString(args, "caption")); err != nil {
		return nil, fmt.Errorf("failed to send file: %w", err)
	}
	return map[string]any{"text": "File sent", "path": path}, nil
}
