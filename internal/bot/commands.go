package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"presence/internal/service"
	"presence/internal/stats"
)

const (
	statusOK         = "ok"
	statusError      = "error"
	statusNotFound   = "not_found"
	statusBadRequest = "bad_request"
)

const helpText = `Presence analyzer commands:
/users [page] - list of users
/weekday <id> - total presence per weekday
/mean <id> - mean presence per weekday
/startend <id> - mean arrival and departure per weekday
/monthly <id> - mean presence per month
/months - months with recorded presence
/top <YYYY-MM> [n] - best users of a month
/avatar <id> - user avatar
/export <YYYY-MM> - monthly report as Excel file`

func parseUserID(args []string) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, false
	}
	return id, true
}

func (b *Bot) fail(ctx context.Context, chatID int64, err error, msg string) string {
	zerolog.Ctx(ctx).Error().Err(err).Msg(msg)
	b.reply(chatID, "Presence data is unavailable right now, try again later.")
	return statusError
}

func (b *Bot) notFound(chatID int64, userID int) string {
	b.reply(chatID, fmt.Sprintf("User %d not found.", userID))
	return statusNotFound
}

func (b *Bot) userTitle(ctx context.Context, userID int) string {
	profile, ok, err := b.presence.UserProfile(ctx, userID)
	if err != nil || !ok || profile.Name == "" {
		return fmt.Sprintf("User %d", userID)
	}
	return fmt.Sprintf("%s (%d)", profile.Name, userID)
}

func (b *Bot) handleUserCard(ctx context.Context, chatID int64, value string) string {
	userID, ok := parseUserID([]string{value})
	if !ok {
		return statusBadRequest
	}
	id := strconv.Itoa(userID)
	msg := tgbotapi.NewMessage(chatID, b.userTitle(ctx, userID))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Weekday totals", "weekday:"+id),
			tgbotapi.NewInlineKeyboardButtonData("Weekday means", "mean:"+id),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Start / end", "startend:"+id),
			tgbotapi.NewInlineKeyboardButtonData("By month", "monthly:"+id),
		),
	)
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send user card failed")
		return statusError
	}
	return statusOK
}

func (b *Bot) handleWeekday(ctx context.Context, chatID int64, args []string) string {
	return b.weekdayReport(ctx, chatID, args, "weekday", "Total presence per weekday", b.presence.PresenceWeekday)
}

func (b *Bot) handleMean(ctx context.Context, chatID int64, args []string) string {
	return b.weekdayReport(ctx, chatID, args, "mean", "Mean presence per weekday", b.presence.MeanTimeWeekday)
}

func (b *Bot) weekdayReport(
	ctx context.Context,
	chatID int64,
	args []string,
	command, title string,
	query func(context.Context, int) ([]service.WeekdayValue, bool, error),
) string {
	userID, ok := parseUserID(args)
	if !ok {
		b.reply(chatID, fmt.Sprintf("Usage: /%s <user id>", command))
		return statusBadRequest
	}
	values, found, err := query(ctx, userID)
	if err != nil {
		return b.fail(ctx, chatID, err, "weekday report failed")
	}
	if !found {
		return b.notFound(chatID, userID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, %s:\n", title, b.userTitle(ctx, userID))
	for _, v := range values {
		fmt.Fprintf(&sb, "%s %s\n", v.Day, stats.FormatSeconds(v.Seconds))
	}
	b.reply(chatID, strings.TrimRight(sb.String(), "\n"))
	return statusOK
}

func (b *Bot) handleStartEnd(ctx context.Context, chatID int64, args []string) string {
	userID, ok := parseUserID(args)
	if !ok {
		b.reply(chatID, "Usage: /startend <user id>")
		return statusBadRequest
	}
	values, found, err := b.presence.PresenceStartEnd(ctx, userID)
	if err != nil {
		return b.fail(ctx, chatID, err, "start/end report failed")
	}
	if !found {
		return b.notFound(chatID, userID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Mean start and end, %s:\n", b.userTitle(ctx, userID))
	for _, v := range values {
		fmt.Fprintf(&sb, "%s %s - %s\n", v.Day, stats.FormatSeconds(v.Start), stats.FormatSeconds(v.End))
	}
	b.reply(chatID, strings.TrimRight(sb.String(), "\n"))
	return statusOK
}

func (b *Bot) handleMonthly(ctx context.Context, chatID int64, args []string) string {
	userID, ok := parseUserID(args)
	if !ok {
		b.reply(chatID, "Usage: /monthly <user id>")
		return statusBadRequest
	}
	means, found, err := b.presence.MeanByMonth(ctx, userID)
	if err != nil {
		return b.fail(ctx, chatID, err, "monthly report failed")
	}
	if !found {
		return b.notFound(chatID, userID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Mean presence per month, %s:\n", b.userTitle(ctx, userID))
	for i, mean := range means {
		fmt.Fprintf(&sb, "%s %s\n", time.Month(i+1).String()[:3], stats.FormatSeconds(mean))
	}
	b.reply(chatID, strings.TrimRight(sb.String(), "\n"))
	return statusOK
}

func (b *Bot) handleMonths(ctx context.Context, chatID int64) string {
	months, err := b.presence.Months(ctx)
	if err != nil {
		return b.fail(ctx, chatID, err, "months listing failed")
	}
	if len(months) == 0 {
		b.reply(chatID, "No presence recorded yet.")
		return statusOK
	}
	names := make([]string, 0, len(months))
	for _, ym := range months {
		names = append(names, ym.String())
	}
	b.reply(chatID, "Months with presence:\n"+strings.Join(names, "\n"))
	return statusOK
}

func (b *Bot) handleTop(ctx context.Context, chatID int64, args []string) string {
	if len(args) == 0 {
		b.reply(chatID, "Usage: /top <YYYY-MM> [n]")
		return statusBadRequest
	}
	ym, err := service.ParseMonth(args[0])
	if err != nil {
		b.reply(chatID, "Month must look like 2013-09.")
		return statusBadRequest
	}
	n := b.topN
	if len(args) > 1 {
		n, err = strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			b.reply(chatID, "The number of places must be a positive integer.")
			return statusBadRequest
		}
	}

	ranking, err := b.presence.TopMonthly(ctx, ym, n)
	if err != nil {
		return b.fail(ctx, chatID, err, "top monthly failed")
	}
	if len(ranking) == 0 {
		b.reply(chatID, fmt.Sprintf("No presence recorded in %s.", ym))
		return statusOK
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Top %d of %s:\n", n, ym)
	for i, place := range ranking {
		fmt.Fprintf(&sb, "%d. %s %s\n", i+1, place.Name, stats.FormatSeconds(place.Mean))
	}
	b.reply(chatID, strings.TrimRight(sb.String(), "\n"))
	return statusOK
}

func (b *Bot) handleAvatar(ctx context.Context, chatID int64, args []string) string {
	userID, ok := parseUserID(args)
	if !ok {
		b.reply(chatID, "Usage: /avatar <user id>")
		return statusBadRequest
	}
	profile, found, err := b.presence.UserProfile(ctx, userID)
	if err != nil {
		return b.fail(ctx, chatID, err, "avatar lookup failed")
	}
	if !found {
		return b.notFound(chatID, userID)
	}
	if profile.Avatar == "" {
		b.reply(chatID, fmt.Sprintf("%s has no avatar.", profile.Name))
		return statusOK
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(profile.Avatar))
	photo.Caption = profile.Name
	if _, err := b.tg.Send(photo); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("avatar", profile.Avatar).Msg("send avatar failed")
		b.reply(chatID, profile.Avatar)
	}
	return statusOK
}

func (b *Bot) handleExport(ctx context.Context, chatID int64, args []string) string {
	if b.reports == nil {
		b.reply(chatID, "Exports are disabled.")
		return statusBadRequest
	}
	if len(args) == 0 {
		b.reply(chatID, "Usage: /export <YYYY-MM>")
		return statusBadRequest
	}
	ym, err := service.ParseMonth(args[0])
	if err != nil {
		b.reply(chatID, "Month must look like 2013-09.")
		return statusBadRequest
	}

	doc, err := b.reports.Build(ctx, ym)
	if err != nil {
		return b.fail(ctx, chatID, err, "export failed")
	}

	upload := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: doc.Filename, Bytes: doc.Data})
	upload.Caption = doc.Caption
	if _, err := b.tg.Send(upload); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("file", doc.Filename).Msg("send export failed")
		return statusError
	}
	return statusOK
}
