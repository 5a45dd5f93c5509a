package bot

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"shifttally/internal/log"
)

const traceKey = "trace_id"

// Trace attaches a trace ID to every update and logs the received /
// handled pair around the handler chain.
func Trace(logger *log.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			traceID := newTraceID()
			c.Set(traceKey, traceID)
			start := time.Now()

			var chatID int64
			if c.Chat() != nil {
				chatID = c.Chat().ID
			}

			logger.Info("Update received",
				log.FieldTraceID, traceID,
				log.FieldChatID, chatID,
				"text_len", len(c.Text()))

			err := next(c)

			if err != nil {
				logger.Error("Update failed",
					log.FieldTraceID, traceID,
					log.FieldChatID, chatID,
					log.FieldDurationMS, time.Since(start).Milliseconds(),
					log.FieldError, err)
			} else {
				logger.Info("Update handled",
					log.FieldTraceID, traceID,
					log.FieldChatID, chatID,
					log.FieldDurationMS, time.Since(start).Milliseconds())
			}
			return err
		}
	}
}

// newTraceID creates a unique ID for one update's log records.
func newTraceID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("upd_%d", time.Now().UnixNano())
	}
	return "upd_" + hex.EncodeToString(bytes)
}
