package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"presence/internal/service"
)

const usersPerPage = 8

type usersPage struct {
	ChatID    int64
	MessageID int // 0 if new message
	Page      int // 1-based
	Users     []service.UserSummary
}

// handleUsers lists users page by page. args[0] is an optional 1-based page.
func (b *Bot) handleUsers(ctx context.Context, chatID int64, messageID int, args []string) string {
	page := 1
	if len(args) > 0 && args[0] != "" {
		p, err := strconv.Atoi(args[0])
		if err != nil || p < 1 {
			b.reply(chatID, "Usage: /users [page]")
			return statusBadRequest
		}
		page = p
	}

	users, err := b.presence.Users(ctx)
	if err != nil {
		return b.fail(ctx, chatID, err, "users listing failed")
	}
	if len(users) == 0 {
		b.reply(chatID, "No users found.")
		return statusOK
	}

	b.renderUsersPage(usersPage{ChatID: chatID, MessageID: messageID, Page: page, Users: users})
	return statusOK
}

func pageCount(total int) int {
	return (total + usersPerPage - 1) / usersPerPage
}

func (b *Bot) renderUsersPage(params usersPage) {
	pages := pageCount(len(params.Users))
	if params.Page > pages {
		params.Page = pages
	}
	startIdx := (params.Page - 1) * usersPerPage
	endIdx := startIdx + usersPerPage
	if endIdx > len(params.Users) {
		endIdx = len(params.Users)
	}

	var message strings.Builder
	message.WriteString("Users\n\n")
	message.WriteString(fmt.Sprintf("Page %d of %d", params.Page, pages))

	current := params.Users[startIdx:endIdx]
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i, user := range current {
		btn := tgbotapi.NewInlineKeyboardButtonData(
			fmt.Sprintf("%d. %s", startIdx+i+1, user.Name),
			fmt.Sprintf("user:%d", user.UserID),
		)
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{btn})
	}

	var navButtons []tgbotapi.InlineKeyboardButton
	if params.Page > 1 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", fmt.Sprintf("users:%d", params.Page-1)))
	}
	if endIdx < len(params.Users) {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("users:%d", params.Page+1)))
	}
	if len(navButtons) > 0 {
		keyboard = append(keyboard, navButtons)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)

	var err error
	if params.MessageID != 0 {
		editMsg := tgbotapi.NewEditMessageTextAndMarkup(params.ChatID, params.MessageID, message.String(), markup)
		_, err = b.tg.Send(editMsg)
	} else {
		msg := tgbotapi.NewMessage(params.ChatID, message.String())
		msg.ReplyMarkup = markup
		_, err = b.tg.Send(msg)
	}
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", params.ChatID).Msg("send users page failed")
	}
}
