package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rahul/ghostline/internal/engine"
	"github.com/rahul/ghostline/internal/observability"
)

// telegramMessageLimit is the Bot API hard cap per message; longer
// replies are split on line boundaries.
const telegramMessageLimit = 4000

// TelegramGateway bridges Telegram chats to the engine. It is both a
// Messenger (the inbound command loop) and an engine.Reporter (step
// progress, goal updates, and inline-keyboard confirmation prompts).
type TelegramGateway struct {
	Bot    *tgbotapi.BotAPI
	Engine *engine.Engine
	Gate   *engine.Gate

	allowedChat int64
	logger      *observability.Logger
}

func NewTelegramGateway(token string, eng *engine.Engine, gate *engine.Gate, allowedChat int64, logger *observability.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	logger.Log(observability.Event{
		Type: "gateway",
		Data: map[string]any{"transport": "telegram", "account": bot.Self.UserName},
	})
	return &TelegramGateway{
		Bot:         bot,
		Engine:      eng,
		Gate:        gate,
		allowedChat: allowedChat,
		logger:      logger,
	}, nil
}

func (tg *TelegramGateway) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.Bot.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			tg.handleCallback(update.CallbackQuery)
		case update.Message != nil:
			tg.handleMessage(update.Message)
		}
	}
	return nil
}

func (tg *TelegramGateway) handleMessage(msg *tgbotapi.Message) {
	if tg.allowedChat != 0 && msg.Chat.ID != tg.allowedChat {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	target := strconv.FormatInt(msg.Chat.ID, 10)
	ctx := context.Background()

	switch {
	case text == "/start":
		tg.Notify(target, "Ready. Send me a command, or start an autonomous goal with goal: <description>.")

	case text == "/cancel":
		if err := tg.Engine.CancelGoal(target); err != nil {
			tg.Notify(target, err.Error())
		} else {
			tg.Notify(target, "Cancelling the current goal.")
		}

	case text == "/status":
		if goal, ok := tg.Engine.ActiveGoal(target); ok {
			tg.Notify(target, fmt.Sprintf("Goal %s is %s after %d steps.", goal.ID, goal.Status(), len(goal.Steps())))
		} else {
			tg.Notify(target, "No goal is running.")
		}

	case strings.HasPrefix(strings.ToLower(text), "goal:") || strings.HasPrefix(strings.ToLower(text), "auto:"):
		description := strings.TrimSpace(text[5:])
		if description == "" {
			tg.Notify(target, "Give the goal a description, e.g. goal: organize my downloads folder.")
			return
		}
		// RunGoal drives the goal to completion; keep the update loop free.
		go func() {
			if _, err := tg.Engine.RunGoal(ctx, description, target); err != nil {
				tg.Notify(target, err.Error())
			}
		}()

	default:
		// Commands run concurrently so a confirmation prompt on one
		// never blocks the next message.
		go tg.Engine.HandleCommand(ctx, text, target)
	}
}

// handleCallback resolves inline-keyboard confirmation buttons. Callback
// data is "confirm:<request-id>:yes|no".
func (tg *TelegramGateway) handleCallback(cb *tgbotapi.CallbackQuery) {
	parts := strings.Split(cb.Data, ":")
	if len(parts) != 3 || parts[0] != "confirm" {
		return
	}
	requestID, approved := parts[1], parts[2] == "yes"

	verdict := "Denied."
	if approved {
		verdict = "Approved."
	}
	if err := tg.Gate.Resolve(requestID, approved); err != nil {
		verdict = "That request already expired."
	}

	tg.Bot.Request(tgbotapi.NewCallback(cb.ID, verdict))
	if cb.Message != nil {
		edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID,
			cb.Message.Text+"\n\n"+verdict)
		tg.Bot.Send(edit)
	}
}

func (tg *TelegramGateway) Send(target string, text string) error {
	chatID, err := parseChatID(target)
	if err != nil {
		return err
	}
	for _, chunk := range splitMessage(text, telegramMessageLimit) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if _, err := tg.Bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (tg *TelegramGateway) SendFile(target string, path string, caption string) error {
	chatID, err := parseChatID(target)
	if err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	_, err = tg.Bot.Send(doc)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}

// ─── engine.Reporter ───

func (tg *TelegramGateway) Progress(target string, p engine.Progress) {
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
	tg.Notify(target, head)
}

func (tg *TelegramGateway) GoalUpdate(target string, u engine.GoalUpdate) {
	tg.Notify(target, fmt.Sprintf("🎯 Goal %s: %s\n%s", u.GoalID, u.Status, u.Summary))
}

func (tg *TelegramGateway) ConfirmPrompt(target string, p engine.ConfirmPrompt) {
	chatID, err := parseChatID(target)
	if err != nil {
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"⚠️ Confirmation needed:\n%s\n\nExpires in %s.", p.ActionSummary, p.ExpiresIn))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "confirm:"+p.RequestID+":yes"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Deny", "confirm:"+p.RequestID+":no"),
		),
	)
	tg.Bot.Send(msg)
}

func (tg *TelegramGateway) Notify(target string, text string) {
	if err := tg.Send(target, text); err != nil {
		tg.logger.LogError(target, fmt.Sprintf("telegram send: %v", err))
	}
}

func parseChatID(target string) (int64, error) {
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chat ID: %s", target)
	}
	return id, nil
}

// splitMessage breaks text into chunks no longer than limit, preferring
// line boundaries.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
