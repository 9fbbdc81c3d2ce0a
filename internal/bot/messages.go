package bot

import (
	"fmt"
	"strings"

	"zeinbus/internal/booking"
	"zeinbus/internal/models"
)

const helpText = `الأوامر المتاحة:
/login <البريد أو اسم المستخدم> <كلمة المرور> - تسجيل الدخول
/book - حجز رحلة جديدة
/trips - عرض رحلاتي وإلغاء رحلة قادمة
/cancel - إيقاف الحجز الجاري
/logout - تسجيل الخروج`

var prompts = map[State]string{
	StateAskTripType:   "اختر نوع الرحلة:",
	StateAskDate:       "اختر تاريخ الرحلة:",
	StateAskStartPoint: "اختر نقطة التحرك:",
	StateAskSeats:      "اختر عدد المقاعد:",
	StateAskReturnTime: "اختر موعد العودة:",
	StateAskPayment:    "اختر طريقة الدفع:",
	StateCanceled:      "❌ تم إيقاف الحجز. /book للبدء من جديد.",
}

func formatConfirmation(d *booking.Draft, cost booking.Money) string {
	var sb strings.Builder
	sb.WriteString("📋 بيانات الحجز:\n\n")
	sb.WriteString(fmt.Sprintf("🚌 نوع الرحلة: %s\n", d.TripType.Label()))
	sb.WriteString(fmt.Sprintf("📅 التاريخ: %s\n", d.Date))
	sb.WriteString(fmt.Sprintf("🎓 الوجهة: %s\n", d.Destination))
	if d.TripType.NeedsStartPoint() {
		sb.WriteString(fmt.Sprintf("📍 نقطة التحرك: %s\n", d.StartPoint))
	}
	if d.TripType.NeedsReturnTime() {
		sb.WriteString(fmt.Sprintf("🕒 موعد العودة: %s\n", d.EndTime))
	}
	sb.WriteString(fmt.Sprintf("💺 المقاعد: %d\n", d.Seats))
	sb.WriteString(fmt.Sprintf("💳 الدفع: %s\n", d.PaymentType.Label()))
	sb.WriteString(fmt.Sprintf("💰 التكلفة: %s جنيه\n\n", cost))
	sb.WriteString("تأكيد الحجز؟")
	return sb.String()
}

func formatComplete(id string, sub booking.Submission) string {
	return fmt.Sprintf("✅ تم الحجز بنجاح! رقم الحجز: %s\n📅 %s - %s\n🕖 التحرك: %s\n💰 %s جنيه",
		id, sub.Date, sub.TripType.Label(), sub.StartTime, sub.TripCost)
}

func formatTrip(n int, b *models.Booking) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d. %s - %s\n", n, b.Date, b.TripType.Label()))
	if b.StartPoint != "" {
		sb.WriteString(fmt.Sprintf("   📍 %s", b.StartPoint))
		if b.StartTime != "" {
			sb.WriteString(" " + b.StartTime)
		}
		sb.WriteString("\n")
	}
	if b.TripType.NeedsReturnTime() && b.EndTime != "" {
		sb.WriteString(fmt.Sprintf("   🕒 العودة %s\n", b.EndTime))
	}
	sb.WriteString(fmt.Sprintf("   💺 %d  💰 %s  (%s)\n\n", b.Seats, b.TripCost, b.StatusLabel()))
	return sb.String()
}

func formatValidation(v *booking.ValidationError) string {
	if v.Detail == "" {
		return "⚠️ " + v.Title
	}
	return "⚠️ " + v.Title + "\n" + v.Detail
}

func formatNotification(n models.Notification) string {
	if n.Title == "" {
		return "🔔 " + n.Message
	}
	return "🔔 " + n.Title + "\n" + n.Message
}
