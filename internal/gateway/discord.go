package gateway

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/rahul/ghostline/internal/engine"
	"github.com/rahul/ghostline/internal/observability"
)

const discordMessageLimit = 2000

// DiscordGateway bridges Discord channels to the engine. Confirmations
// are plain text here: "approve <id>" or "deny <id>" in the same channel.
type DiscordGateway struct {
	Session *discordgo.Session
	Engine  *engine.Engine
	Gate    *engine.Gate

	logger *observability.Logger
}

func NewDiscordGateway(token string, eng *engine.Engine, gate *engine.Gate, logger *observability.Logger) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	dg := &DiscordGateway{Session: session, Engine: eng, Gate: gate, logger: logger}
	session.AddHandler(dg.onMessage)
	return dg, nil
}

func (dg *DiscordGateway) Start() error {
	if err := dg.Session.Open(); err != nil {
		return err
	}
	dg.logger.Log(observability.Event{
		Type: "gateway",
		Data: map[string]any{"transport": "discord", "account": dg.Session.State.User.Username},
	})
	return nil
}

func (dg *DiscordGateway) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.Bot {
		return
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}
	target := m.ChannelID
	ctx := context.Background()
	fields := strings.Fields(text)

	switch {
	case fields[0] == "approve" || fields[0] == "deny":
		if len(fields) != 2 {
			dg.Notify(target, "Usage: approve <request-id> or deny <request-id>")
			return
		}
		verdict := "Denied."
		if fields[0] == "approve" {
			verdict = "Approved."
		}
		if err := dg.Gate.Resolve(fields[1], fields[0] == "approve"); err != nil {
			verdict = "That request already expired."
		}
		dg.Notify(target, verdict)

	case text == "/cancel":
		if err := dg.Engine.CancelGoal(target); err != nil {
			dg.Notify(target, err.Error())
		} else {
			dg.Notify(target, "Cancelling the current goal.")
		}

	case strings.HasPrefix(strings.ToLower(text), "goal:") || strings.HasPrefix(strings.ToLower(text), "auto:"):
		description := strings.TrimSpace(text[5:])
		if description == "" {
			dg.Notify(target, "Give the goal a description.")
			return
		}
		go func() {
			if _, err := dg.Engine.RunGoal(ctx, description, target); err != nil {
				dg.Notify(target, err.Error())
			}
		}()

	default:
		go dg.Engine.HandleCommand(ctx, text, target)
	}
}

func (dg *DiscordGateway) Send(target string, text string) error {
	for _, chunk := range splitMessage(text, discordMessageLimit) {
		if _, err := dg.Session.ChannelMessageSend(target, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (dg *DiscordGateway) SendFile(target string, path string, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = dg.Session.ChannelMessageSendComplex(target, &discordgo.MessageSend{
		Content: caption,
		Files:   []*discordgo.File{{Name: filepath.Base(path), Reader: f}},
	})
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}

// ─── engine.Reporter ───

func (dg *DiscordGateway) Progress(target string, p engine.Progress) {
	icon := "✅"
	if !p.Success {
		icon = "❌"
	}
	var head string
	if p.Total > 0 {
		head = fmt.Sprintf("%s Step %d/%d %s.%s", icon, p.Step, p.Total, p.Module, p.Function)
	} else {
		head = fmt.Sprintf("%s Step %d %s.%s", icon, p.Step, p.Module, p.Function)
	}
	if p.Preview != "" {
		head += "\n" + p.Preview
	}
	dg.Notify(target, head)
}

func (dg *DiscordGateway) GoalUpdate(target string, u engine.GoalUpdate) {
	dg.Notify(target, fmt.Sprintf("🎯 Goal %s: %s\n%s", u.GoalID, u.Status, u.Summary))
}

func (dg *DiscordGateway) ConfirmPrompt(target string, p engine.ConfirmPrompt) {
	dg.Notify(target, fmt.Sprintf(
		"⚠️ Confirmation needed:\n%s\n\nReply `approve %s` or `deny %s` within %s.",
		p.ActionSummary, p.RequestID, p.RequestID, p.ExpiresIn))
}

func (dg *DiscordGateway) Notify(target string, text string) {
	if err := dg.Send(target, text); err != nil {
		dg.logger.LogError(target, fmt.Sprintf("discord send: %v", err))
	}
}
