// Package export renders a rider's trips as an xlsx workbook.
package export

import (
	"io"

	"zeinbus/internal/booking"
	"zeinbus/internal/models"
)

const (
	SheetUpcoming = "الرحلات القادمة"
	SheetPast     = "الرحلات السابقة"
)

var tripColumns = []string{
	"رقم الحجز",
	"التاريخ",
	"نوع الرحلة",
	"الوجهة",
	"المنطقة",
	"نقطة التحرك",
	"وقت الذهاب",
	"وقت العودة",
	"عدد المقاعد",
	"التكلفة",
	"طريقة الدفع",
	"الحالة",
}

// WriteTrips writes the upcoming and past trips as two sheets to wr.
func WriteTrips(wr io.Writer, upcoming, past []models.Booking) error {
	w := NewWriter()
	defer w.Close()

	for _, sheet := range []struct {
		name  string
		trips []models.Booking
	}{
		{SheetUpcoming, upcoming},
		{SheetPast, past},
	} {
		if err := w.AddSheet(sheet.name); err != nil {
			return err
		}
		if err := w.WriteHeader(tripColumns); err != nil {
			return err
		}
		for i := range sheet.trips {
			if err := w.WriteRow(tripRow(&sheet.trips[i])); err != nil {
				return err
			}
		}
	}

	return w.Save(wr)
}

func tripRow(b *models.Booking) []any {
	endTime := b.EndTime
	if !b.TripType.NeedsReturnTime() {
		endTime = ""
	}
	return []any{
		b.ID,
		b.Date,
		b.TripType.Label(),
		b.Destination,
		b.Area,
		b.StartPoint,
		b.StartTime,
		endTime,
		b.Seats,
		b.TripCost.Float(),
		paymentLabel(b.PaymentType),
		b.StatusLabel(),
	}
}

func paymentLabel(p booking.PaymentType) string {
	if p == "" {
		return booking.PaymentCash.Label()
	}
	return p.Label()
}
