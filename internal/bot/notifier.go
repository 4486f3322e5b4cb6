package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"presence/internal/report"
)

// DocumentNotifier delivers exported reports to a fixed set of chats.
type DocumentNotifier struct {
	tg      telegramClient
	chats   []int64
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewDocumentNotifier sends through the bot's Telegram client. Deliveries are
// paced to stay below the Telegram per-bot limits.
func NewDocumentNotifier(b *Bot, chats []int64) *DocumentNotifier {
	return newDocumentNotifier(b.tg, chats, rate.NewLimiter(rate.Limit(20), 1), b.logger)
}

func newDocumentNotifier(tg telegramClient, chats []int64, limiter *rate.Limiter, logger *zerolog.Logger) *DocumentNotifier {
	return &DocumentNotifier{
		tg:      tg,
		chats:   chats,
		limiter: limiter,
		logger:  logger.With().Str("component", "notifier").Logger(),
	}
}

func (n *DocumentNotifier) Name() string {
	return "telegram"
}

// Publish sends the workbook to every chat and reports the failed ones.
func (n *DocumentNotifier) Publish(ctx context.Context, doc report.Document) error {
	var errs []error
	for _, chatID := range n.chats {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		upload := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: doc.Filename, Reader: doc.Reader()})
		upload.Caption = doc.Caption
		if _, err := n.tg.Send(upload); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
			continue
		}
		n.logger.Debug().Int64("chat_id", chatID).Str("file", doc.Filename).Msg("report delivered")
	}
	return errors.Join(errs...)
}
