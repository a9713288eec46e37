// Package telegram exposes the discovery workflow as a Telegram webhook bot.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"recipe-swiper/internal/app"
	"recipe-swiper/internal/config"
	"recipe-swiper/internal/llm"
	"recipe-swiper/internal/metrics"
	"recipe-swiper/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const updateTimeout = time.Minute

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot wraps the Telegram API and the discovery workflow.
type Bot struct {
	api       Sender
	app       *app.App
	extractor llm.IngredientExtractor
	tracker   *metrics.Tracker
	calls     *metrics.Store
	cfg       *config.Config
	log       *zap.Logger
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, a *app.App, extractor llm.IngredientExtractor, tracker *metrics.Tracker, calls *metrics.Store, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Info("telegram bot authorized", zap.String("account", api.Self.UserName))

	if cfg.TelegramWebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
		if err != nil {
			return nil, fmt.Errorf("failed to build webhook for %s: %w", cfg.TelegramWebhookURL, err)
		}
		resp, err := api.Request(wh)
		if err != nil {
			return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
		}
		log.Info("telegram webhook set", zap.String("description", resp.Description))
	}

	return newBot(api, cfg, a, extractor, tracker, calls, log), nil
}

func newBot(api Sender, cfg *config.Config, a *app.App, extractor llm.IngredientExtractor, tracker *metrics.Tracker, calls *metrics.Store, log *zap.Logger) *Bot {
	if extractor == nil {
		extractor = llm.SplitExtractor{}
	}
	return &Bot{
		api:       api,
		app:       a,
		extractor: extractor,
		tracker:   tracker,
		calls:     calls,
		cfg:       cfg,
		log:       log,
	}
}

// ServeHTTP receives webhook updates. Telegram gets its answer right away;
// the update is handled in the background.
func (b *Bot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.log.Warn("failed to parse telegram update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
		defer cancel()
		b.HandleUpdate(ctx, update)
	}()
}

// HandleUpdate processes one update from an allowed user.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if !b.allowed(update.CallbackQuery.From) {
			return
		}
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		if !b.allowed(update.Message.From) {
			return
		}
		b.processMessage(ctx, update.Message)
	}
}

func (b *Bot) allowed(from *tgbotapi.User) bool {
	if from == nil {
		return false
	}
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if from.ID == id {
			return true
		}
	}
	b.log.Warn("unauthorized telegram access attempt",
		zap.Int64("user_id", from.ID),
		zap.String("username", from.UserName),
	)
	return false
}

func userID(from *tgbotapi.User) string {
	return strconv.FormatInt(from.ID, 10)
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	user := userID(msg.From)
	chatID := msg.Chat.ID

	if !msg.IsCommand() {
		b.setIngredients(ctx, chatID, user, msg.Text, false)
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText, nil)
	case "ingredients":
		if args == "" {
			b.replyResult(chatID, func() (string, error) {
				p, err := b.app.Pantry(ctx, user)
				return formatPantry(p), err
			})
			return
		}
		b.setIngredients(ctx, chatID, user, args, false)
	case "add":
		b.setIngredients(ctx, chatID, user, args, true)
	case "remove_ingredient":
		b.sendQueue(chatID, func() (app.QueueView, error) {
			return b.app.RemoveIngredient(ctx, user, args)
		})
	case "diet":
		names := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ' ' })
		b.sendQueue(chatID, func() (app.QueueView, error) {
			return b.app.SetPreferences(ctx, user, names)
		})
	case "budget":
		b.replyResult(chatID, func() (string, error) {
			if args == "" {
				p, err := b.app.Plan(ctx, user)
				return formatBudget(p.Budget), err
			}
			amount, err := planner.ParseBudget(args)
			if err != nil {
				return "", err
			}
			sum, err := b.app.SetBudget(ctx, user, amount)
			return formatBudget(sum), err
		})
	case "discover":
		b.sendQueue(chatID, func() (app.QueueView, error) { return b.app.Queue(ctx, user) })
	case "restart":
		b.sendQueue(chatID, func() (app.QueueView, error) { return b.app.Restart(ctx, user) })
	case "plan":
		b.replyResult(chatID, func() (string, error) {
			p, err := b.app.Plan(ctx, user)
			return formatPlan(p), err
		})
	case "remove":
		b.replyResult(chatID, func() (string, error) {
			id, err := parseID(args)
			if err != nil {
				return "", err
			}
			p, err := b.app.RemoveFromPlan(ctx, user, id)
			return formatPlan(p), err
		})
	case "clear":
		b.replyResult(chatID, func() (string, error) {
			p, err := b.app.ClearPlan(ctx, user)
			return formatPlan(p), err
		})
	case "shopping":
		b.replyResult(chatID, func() (string, error) {
			l, err := b.app.ShoppingList(ctx, user)
			return formatShopping(l), err
		})
	case "skipped":
		b.replyResult(chatID, func() (string, error) {
			v, err := b.app.Skipped(ctx, user)
			return formatSkipped(v), err
		})
	case "recover":
		b.replyResult(chatID, func() (string, error) {
			id, err := parseID(args)
			if err != nil {
				return "", err
			}
			p, err := b.app.RecoverSkipped(ctx, user, id)
			return formatPlan(p), err
		})
	case "metrics":
		b.handleMetricsRequest(ctx, msg)
	default:
		b.reply(chatID, "🤔 Unknown command. Try /help.", nil)
	}
}

func (b *Bot) setIngredients(ctx context.Context, chatID int64, user, text string, add bool) {
	items, err := b.extractor.ExtractIngredients(ctx, text)
	if err != nil {
		b.reply(chatID, "🤔 I could not find any ingredients in that. Try /ingredients chicken, rice", nil)
		return
	}
	b.sendQueue(chatID, func() (app.QueueView, error) {
		if add {
			return b.app.AddIngredients(ctx, user, items)
		}
		return b.app.SetIngredients(ctx, user, items)
	})
}

func (b *Bot) handleCallbackQuery(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	user := userID(cb.From)
	action, id, err := parseCallback(cb.Data)
	if err != nil || cb.Message == nil {
		b.log.Warn("malformed callback", zap.String("data", cb.Data))
		b.answer(cb.ID, "")
		return
	}

	var (
		q      app.QueueView
		notice string
	)
	switch action {
	case "save", "skip":
		var d app.DecisionView
		if action == "save" {
			d, err = b.app.Accept(ctx, user, id)
		} else {
			d, err = b.app.Reject(ctx, user, id)
		}
		q, notice = d.Queue, formatOutcome(d)
	case "next":
		q, err = b.app.Next(ctx, user)
	case "restart":
		q, err = b.app.Restart(ctx, user)
	}
	if err != nil {
		b.answer(cb.ID, "")
		b.reply(cb.Message.Chat.ID, formatError(err), nil)
		return
	}
	b.answer(cb.ID, notice)

	text, kb := formatCard(q)
	var edit tgbotapi.EditMessageTextConfig
	if kb != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(cb.Message.Chat.ID, cb.Message.MessageID, text, *kb)
	} else {
		edit = tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	}
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.send(edit)
}

// parseCallback reads "<action>|<id>" button data.
func parseCallback(data string) (string, int64, error) {
	action, raw, ok := strings.Cut(data, "|")
	if !ok {
		return "", 0, fmt.Errorf("callback data %q has no separator", data)
	}
	switch action {
	case "save", "skip", "next", "restart":
	default:
		return "", 0, fmt.Errorf("unknown callback action %q", action)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("callback id %q is not a number", raw)
	}
	return action, id, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errBadID
	}
	return id, nil
}

func (b *Bot) handleMetricsRequest(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.AdminTelegramID {
		b.reply(msg.Chat.ID, "⛔ *Access Denied*: Admin only.", nil)
		return
	}

	var usage []metrics.DailyUsage
	if b.calls != nil {
		var err error
		if usage, err = b.calls.GetDailyUsage(ctx, 7); err != nil {
			b.log.Warn("failed to read daily usage", zap.Error(err))
			b.reply(msg.Chat.ID, "❌ Error fetching metrics.", nil)
			return
		}
	}
	var stats metrics.Summary
	if b.tracker != nil {
		stats = b.tracker.Stats(time.Now())
	}
	health := metrics.GetSysHealth(filepath.Dir(b.cfg.DatabasePath))
	b.reply(msg.Chat.ID, formatMetrics(stats, usage, health), nil)
}

func (b *Bot) sendQueue(chatID int64, fn func() (app.QueueView, error)) {
	q, err := fn()
	if err != nil {
		b.reply(chatID, formatError(err), nil)
		return
	}
	text, kb := formatCard(q)
	b.reply(chatID, text, kb)
}

func (b *Bot) replyResult(chatID int64, fn func() (string, error)) {
	text, err := fn()
	if err != nil {
		text = formatError(err)
	}
	b.reply(chatID, text, nil)
}

func (b *Bot) reply(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	b.send(msg)
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Warn("failed to answer callback", zap.Error(err))
	}
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn("failed to send telegram message", zap.Error(err))
	}
}
