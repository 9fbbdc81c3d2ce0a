package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"zeinbus/internal/models"
)

const tripsPerPage = 5

// renderTripsPage lists one page of upcoming trips with a cancel button per
// trip. An out of range page is clamped.
func renderTripsPage(upcoming, past []models.Booking, page int) (string, tgbotapi.InlineKeyboardMarkup) {
	pages := max(1, (len(upcoming)+tripsPerPage-1)/tripsPerPage)
	page = min(max(page, 0), pages-1)

	start := page * tripsPerPage
	end := min(start+tripsPerPage, len(upcoming))

	var message strings.Builder
	if len(upcoming) == 0 {
		message.WriteString("لا توجد رحلات قادمة.\n")
	} else {
		message.WriteString(fmt.Sprintf("🚌 الرحلات القادمة (صفحة %d من %d)\n\n", page+1, pages))
		for i := start; i < end; i++ {
			message.WriteString(formatTrip(i+1, &upcoming[i]))
		}
	}
	if len(past) > 0 {
		message.WriteString(fmt.Sprintf("\nالرحلات السابقة: %d", len(past)))
	}

	keyboard := [][]tgbotapi.InlineKeyboardButton{}
	for i := start; i < end; i++ {
		b := &upcoming[i]
		if !b.IsCancellable() {
			continue
		}
		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("❌ إلغاء %d (%s)", i+1, b.Date), cbCancelAsk+b.ID),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ السابق", fmt.Sprintf("%s%d", cbTripsPage, page-1)))
	}
	if end < len(upcoming) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("التالي ➡️", fmt.Sprintf("%s%d", cbTripsPage, page+1)))
	}
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}

	return message.String(), tgbotapi.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}
