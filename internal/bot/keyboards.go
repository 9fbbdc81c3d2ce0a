package bot

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"zeinbus/internal/booking"
)

const (
	cbTripType   = "tt:"
	cbDate       = "date:"
	cbStartPoint = "sp:"
	cbSeats      = "seats:"
	cbReturnTime = "rt:"
	cbPayment    = "pay:"
	cbBack       = "back:"
	cbTripsPage  = "trips:"
	cbCancelAsk  = "cxl:"
	cbCancelDo   = "cxlok:"
	cbConfirm    = "confirm"
	cbAbort      = "abort"
	cbNoop       = "noop"

	btnBack   = "⬅️ رجوع"
	btnAbort  = "❌ إلغاء"
	btnBook   = "🚌 حجز رحلة"
	btnTrips  = "📋 رحلاتي"
	btnHelp   = "ℹ️ مساعدة"
	daysInRow = 2
)

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnBook),
		tgbotapi.NewKeyboardButton(btnTrips),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnHelp),
	),
)

func navRow(back State) []tgbotapi.InlineKeyboardButton {
	row := []tgbotapi.InlineKeyboardButton{}
	if back != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(btnBack, cbBack+string(back)))
	}
	return append(row, tgbotapi.NewInlineKeyboardButtonData(btnAbort, cbAbort))
}

func tripTypeKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(booking.TripTypes)+1)
	for i, t := range booking.TripTypes {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(t.Label(), cbTripType+strconv.Itoa(i)),
		))
	}
	rows = append(rows, navRow(""))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// dateKeyboard lays the selectable days out two per row.
func dateKeyboard(days []booking.SelectableDate) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(days)/daysInRow+2)
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range days {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(d.Label, cbDate+d.Value))
		if len(row) == daysInRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, navRow(StateAskTripType))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func startPointKeyboard(points []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(points)+1)
	for i, p := range points {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(p, cbStartPoint+strconv.Itoa(i)),
		))
	}
	rows = append(rows, navRow(StateAskDate))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func seatKeyboard(options []int, back State) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, n := range options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(strconv.Itoa(n), fmt.Sprintf("%s%d", cbSeats, n)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, navRow(back))
}

func returnTimeKeyboard(options []booking.TimeOption) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options)+1)
	for i, o := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(o.Label, cbReturnTime+strconv.Itoa(i)),
		))
	}
	rows = append(rows, navRow(StateAskSeats))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func paymentKeyboard(back State) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(booking.PaymentTypes))
	for _, p := range booking.PaymentTypes {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(p.Label(), cbPayment+string(p)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, navRow(back))
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ تأكيد الحجز", cbConfirm),
		),
		navRow(StateAskPayment),
	)
}

func cancelConfirmKeyboard(bookingID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("نعم، إلغاء الرحلة", cbCancelDo+bookingID),
			tgbotapi.NewInlineKeyboardButtonData("لا", cbNoop),
		),
	)
}
