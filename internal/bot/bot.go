package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"presence/internal/metrics"
	"presence/internal/models"
	"presence/internal/report"
	"presence/internal/service"
	"presence/internal/stats"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Presence is the part of the presence service the bot answers from.
type Presence interface {
	Users(ctx context.Context) ([]service.UserSummary, error)
	UserProfile(ctx context.Context, userID int) (models.UserProfile, bool, error)
	PresenceWeekday(ctx context.Context, userID int) ([]service.WeekdayValue, bool, error)
	MeanTimeWeekday(ctx context.Context, userID int) ([]service.WeekdayValue, bool, error)
	PresenceStartEnd(ctx context.Context, userID int) ([]service.WeekdayStartEnd, bool, error)
	MeanByMonth(ctx context.Context, userID int) ([12]float64, bool, error)
	Months(ctx context.Context) ([]models.YearMonth, error)
	TopMonthly(ctx context.Context, ym models.YearMonth, n int) ([]stats.Ranking, error)
}

// ReportBuilder renders the workbook sent by /export.
type ReportBuilder interface {
	Build(ctx context.Context, ym models.YearMonth) (report.Document, error)
}

// Options tune access control and defaults of the bot.
type Options struct {
	Debug         bool
	AllowedUsers  []int64
	RatePerSecond float64
	Burst         int
	TopN          int
}

// Bot answers presence report commands over Telegram.
type Bot struct {
	tg       telegramClient
	presence Presence
	reports  ReportBuilder
	access   *accessControl
	topN     int
	logger   *zerolog.Logger
}

func New(token string, presence Presence, reports ReportBuilder, opts Options, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = opts.Debug
	return newBot(&realTelegramClient{api: api}, presence, reports, opts, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, presence Presence, reports ReportBuilder, opts Options, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, presence, reports, opts, logger)
}

func newBot(tg telegramClient, presence Presence, reports ReportBuilder, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if presence == nil {
		return nil, fmt.Errorf("presence service is nil")
	}
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	l := logger.With().Str("component", "bot").Logger()
	return &Bot{
		tg:       tg,
		presence: presence,
		reports:  reports,
		access:   newAccessControl(opts.AllowedUsers, opts.RatePerSecond, opts.Burst),
		topN:     opts.TopN,
		logger:   &l,
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("presence bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil && update.Message.From != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	command, args := parseCommand(msg.Text)
	if command == "" {
		return
	}
	chatID := msg.Chat.ID

	if status := b.access.check(msg.From.ID); status != accessOK {
		b.reply(chatID, status.message())
		metrics.IncBotCommand(commandLabel(command), string(status))
		return
	}

	var status string
	switch command {
	case "start", "help":
		b.reply(chatID, helpText)
		status = statusOK
	case "users":
		status = b.handleUsers(ctx, chatID, 0, args)
	case "weekday":
		status = b.handleWeekday(ctx, chatID, args)
	case "mean":
		status = b.handleMean(ctx, chatID, args)
	case "startend":
		status = b.handleStartEnd(ctx, chatID, args)
	case "monthly":
		status = b.handleMonthly(ctx, chatID, args)
	case "months":
		status = b.handleMonths(ctx, chatID)
	case "top":
		status = b.handleTop(ctx, chatID, args)
	case "avatar":
		status = b.handleAvatar(ctx, chatID, args)
	case "export":
		status = b.handleExport(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Send /help for the list of commands.")
		command, status = "unknown", statusBadRequest
	}
	metrics.IncBotCommand(command, status)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	_, _ = b.tg.Request(tgbotapi.NewCallback(cq.ID, ""))

	if status := b.access.check(cq.From.ID); status != accessOK {
		metrics.IncBotCommand("callback", string(status))
		return
	}

	chatID := cq.Message.Chat.ID
	action, value, _ := strings.Cut(cq.Data, ":")
	var status string
	switch action {
	case "users":
		status = b.handleUsers(ctx, chatID, cq.Message.MessageID, []string{value})
	case "user":
		status = b.handleUserCard(ctx, chatID, value)
	case "weekday":
		status = b.handleWeekday(ctx, chatID, []string{value})
	case "mean":
		status = b.handleMean(ctx, chatID, []string{value})
	case "startend":
		status = b.handleStartEnd(ctx, chatID, []string{value})
	case "monthly":
		status = b.handleMonthly(ctx, chatID, []string{value})
	default:
		return
	}
	metrics.IncBotCommand("callback_"+action, status)
}

var knownCommands = map[string]bool{
	"start": true, "help": true, "users": true, "weekday": true, "mean": true,
	"startend": true, "monthly": true, "months": true, "top": true,
	"avatar": true, "export": true,
}

// commandLabel bounds the metric label set to the commands the bot serves.
func commandLabel(command string) string {
	if knownCommands[command] {
		return command
	}
	return "unknown"
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	command := strings.TrimPrefix(fields[0], "/")
	if name, _, found := strings.Cut(command, "@"); found {
		command = name
	}
	return strings.ToLower(command), fields[1:]
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send message failed")
	}
}
