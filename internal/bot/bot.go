// Package bot is the Telegram transport: it routes keyboard commands to
// the query facade and everything else through the amount parser. It
// holds no aggregate state of its own.
package bot

import (
	"bytes"
	"context"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"shifttally/internal/export"
	applog "shifttally/internal/log"
	"shifttally/internal/services"
	"shifttally/internal/storage"
)

const (
	btnTotal    = "📊 Total"
	btnTotalAll = "📊 Total All"
	btnExport   = "📤 Export"

	greeting        = "សួស្តី! Bot Ready ✅"
	msgStorageRetry = "Storage is busy, please try again."
	msgNotAllowed   = "Export is limited to administrators."
)

// action classifies one inbound text.
type action int

const (
	actionRecord action = iota
	actionShiftTotal
	actionDayTotal
	actionExport
)

type Bot struct {
	tb        *tele.Bot
	svc       *services.TallyService
	source    export.Source
	renderers []export.Renderer
	admins    map[int64]struct{}
	logger    *applog.Logger
	keyboard  *tele.ReplyMarkup
}

// New wires the bot against the Telegram API with a long poller.
func New(token string, svc *services.TallyService, source export.Source, renderers []export.Renderer, adminIDs []int64, logger *applog.Logger) (*Bot, error) {
	tb, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}

	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	b := &Bot{
		tb:        tb,
		svc:       svc,
		source:    source,
		renderers: renderers,
		admins:    admins,
		logger:    logger,
		keyboard:  buildKeyboard(),
	}

	tb.Use(Trace(logger))
	tb.Handle("/start", b.handleStart)
	tb.Handle(tele.OnText, b.handleText)

	return b, nil
}

// Start begins long polling; it blocks until Stop is called.
func (b *Bot) Start() {
	b.tb.Start()
}

func (b *Bot) Stop() {
	b.tb.Stop()
}

func buildKeyboard() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	menu.Reply(
		menu.Row(menu.Text(btnTotal), menu.Text(btnTotalAll)),
		menu.Row(menu.Text(btnExport)),
	)
	return menu
}

// classify maps inbound text to the action it triggers. Anything that is
// not a keyboard command goes through the parser.
func classify(text string) action {
	switch strings.TrimSpace(text) {
	case btnTotal:
		return actionShiftTotal
	case btnTotalAll:
		return actionDayTotal
	case btnExport:
		return actionExport
	default:
		return actionRecord
	}
}

func (b *Bot) isAdmin(chatID int64) bool {
	_, ok := b.admins[chatID]
	return ok
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(greeting, b.keyboard)
}

func (b *Bot) handleText(c tele.Context) error {
	ctx := context.Background()
	chatID := c.Chat().ID
	now := messageTime(c)

	switch classify(c.Text()) {
	case actionShiftTotal:
		totals, _, _, err := b.svc.CurrentShiftTotals(ctx, chatID, now)
		if err != nil {
			return b.replyError(c, err)
		}
		return c.Send(totals.Summary(), b.keyboard)

	case actionDayTotal:
		totals, _, err := b.svc.BusinessDayTotals(ctx, chatID, now)
		if err != nil {
			return b.replyError(c, err)
		}
		return c.Send(totals.Summary(), b.keyboard)

	case actionExport:
		return b.handleExport(ctx, c, chatID, now)

	default:
		res, err := b.svc.RecordMessage(ctx, chatID, c.Text(), now)
		if err != nil {
			return b.replyError(c, err)
		}
		if res.Recorded == 0 {
			// Chatter with no amounts gets no reply.
			return nil
		}
		return c.Send(res.Summary(), b.keyboard)
	}
}

func (b *Bot) handleExport(ctx context.Context, c tele.Context, chatID int64, now time.Time) error {
	if !b.isAdmin(chatID) {
		return c.Send(msgNotAllowed, b.keyboard)
	}

	date := b.svc.BusinessDate(now)
	snap, err := export.BuildSnapshot(ctx, b.source, chatID, date)
	if err != nil {
		return b.replyError(c, err)
	}

	for _, r := range b.renderers {
		name, data, err := r.Render(ctx, snap)
		if err != nil {
			return b.replyError(c, err)
		}
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(data)),
			FileName: name,
		}
		if err := c.Send(doc); err != nil {
			return err
		}
	}
	return nil
}

// replyError tells the user about retryable storage trouble; anything
// else is only logged and propagated to the trace middleware.
func (b *Bot) replyError(c tele.Context, err error) error {
	if storage.IsStorageError(err) {
		if serr := c.Send(msgStorageRetry, b.keyboard); serr != nil {
			return serr
		}
	}
	return err
}

// messageTime prefers the Telegram message timestamp over server time,
// so delayed deliveries still land in the shift they were sent in.
func messageTime(c tele.Context) time.Time {
	if m := c.Message(); m != nil && m.Unixtime > 0 {
		return m.Time()
	}
	return time.Now()
}
