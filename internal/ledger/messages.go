package ledger

import (
	"fmt"
	"strings"

	"xarajat/internal/core"
	"xarajat/internal/report"
)

// Reply texts. The ledger speaks Uzbek (Latin script) with a fixed emoji style.
const (
	msgWelcome = "Xush kelibsiz! Bu shaxsiy xarajatlarni hisoblovchi bot.\n\n" +
		"Mavjud buyruqlar:\n" +
		"/add [summa] [kategoriya] - xarajat qo'shish\n" +
		"/list - barcha xarajatlarni ko'rsatish\n" +
		"/total - umumiy xarajatlar summasini ko'rsatish\n" +
		"/delete [ID] - xarajatni o'chirish\n" +
		"/daily - bugungi kun uchun hisobot\n" +
		"/monthly [oy] - oylik hisobot (masalan: /monthly avgust)\n" +
		"/help - barcha buyruqlar haqida ma'lumot\n\n" +
		"Masalan: /add 15000 ovqat\n" +
		"Xarajat ID sini /list buyrug'i orqali ko'rishingiz mumkin."

	msgHelp = "📋 Barcha Buyruqlar:\n\n" +
		"➕ Xarajat qo'shish:\n" +
		"/add [summa] [kategoriya]\n" +
		"Masalan: /add 25000 transport\n\n" +
		"📄 Xarajatlarni ko'rish:\n" +
		"/list - oxirgi 10 ta xarajat\n\n" +
		"💰 Umumiy hisob:\n" +
		"/total - barcha xarajatlar yig'indisi\n\n" +
		"🗑️ Xarajat o'chirish:\n" +
		"/delete [ID] - ID ni /list orqali ko'ring\n\n" +
		"📊 Hisobotlar:\n" +
		"/daily - bugungi xarajatlar\n" +
		"/monthly [oy] - oylik hisobot\n" +
		"Masalan: /monthly avgust\n\n" +
		"❓ Yordam:\n" +
		"/help - bu xabarni ko'rsatish"

	msgUnknown      = "Noto'g'ri buyruq. /help ni bosing yordam olish uchun."
	msgAddFormat    = "Noto'g'ri format. Iltimos: /add 1000 ovqat"
	msgAddAmount    = "Summa noto'g'ri kiritilgan. Iltimos, raqam kiriting."
	msgDeleteFormat = "Noto'g'ri format. Iltimos: /delete 5\nXarajat ID sini /list buyrug'i orqali ko'rishingiz mumkin."
	msgNotFound     = "Xarajat topilmadi yoki sizga tegishli emas."
	msgNoExpenses   = "Hozircha xarajatlar mavjud emas."
	msgNoneToday    = "Bugun hech qanday xarajat qilmagansiz."
	msgRateLimited  = "⏳ Juda ko'p so'rov. Iltimos, biroz kuting."

	msgAddFailed     = "Xarajat qo'shishda xato yuz berdi."
	msgListFailed    = "Xarajatlarni ko'rsatishda xato yuz berdi."
	msgTotalFailed   = "❌ Hisobot olishda xatolik! Iltimos, keyinroq urunib ko'ring."
	msgDeleteFailed  = "Xarajatni o'chirishda xato yuz berdi."
	msgDailyFailed   = "Kunlik hisobot olishda xato yuz berdi."
	msgMonthlyFailed = "Oylik hisobot olishda xato yuz berdi."
	msgGenericFailed = "❌ Xatolik yuz berdi. Iltimos, keyinroq urunib ko'ring."
)

const (
	dateLayout = "02.01.2006"
	timeLayout = "15:04"
	currency   = "so'm"
)

// RateLimitedReply is sent by transports that throttle a user.
func RateLimitedReply() string { return msgRateLimited }

func renderAdded(e core.Expense) string {
	return fmt.Sprintf("✅ %s %s '%s' kategoriyasiga qo'shildi.", e.Amount.String(), currency, e.Category)
}

func renderDeleted(e core.Expense) string {
	return fmt.Sprintf("✅ Xarajat o'chirildi: %s %s - %s", e.Amount.String(), currency, e.Category)
}

func renderList(expenses []core.Expense) string {
	if len(expenses) == 0 {
		return msgNoExpenses
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 So'ngi %d ta xarajat:\n\n", ListLimit)
	for _, e := range expenses {
		fmt.Fprintf(&b, "🆔 %d | %s | %s %s | %s\n",
			e.ID, e.CreatedAt.UTC().Format(dateLayout), core.FormatAmount(e.Amount), currency, e.Category)
	}
	b.WriteString("\n🗑️ Xarajatni o'chirish uchun: /delete [ID]")
	return b.String()
}

func renderTotal(t core.Totals) string {
	if t.IsEmpty() {
		return msgNoExpenses
	}
	return fmt.Sprintf("💰 Umumiy xarajat: %s %s\n📊 Jami xarajatlar soni: %d",
		core.FormatAmount(t.Sum), currency, t.Count)
}

func renderDaily(d report.Daily) string {
	if d.IsEmpty() {
		return msgNoneToday
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Bugungi hisobot (%s):\n\n", d.Date.Format(dateLayout))
	fmt.Fprintf(&b, "💰 Jami xarajat: %s %s\n", core.FormatAmount(d.Total), currency)
	fmt.Fprintf(&b, "📊 Xarajatlar soni: %d ta\n\n", d.Count)
	b.WriteString("📋 Xarajatlar ro'yxati:\n")
	for _, e := range d.Entries {
		fmt.Fprintf(&b, "• %s %s - %s (%s)\n",
			core.FormatAmount(e.Amount), currency, e.Category, e.CreatedAt.UTC().Format(timeLayout))
	}
	return b.String()
}

func renderMonthly(m report.Monthly) string {
	name := core.MonthName(m.Month)
	if m.IsEmpty() {
		return fmt.Sprintf("%s oyida xarajatlar mavjud emas.", name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s oyi hisoboti:\n\n", name)
	fmt.Fprintf(&b, "💰 Jami xarajat: %s %s\n", core.FormatAmount(m.Total), currency)
	fmt.Fprintf(&b, "📊 Xarajatlar soni: %d ta\n\n", m.Count)
	b.WriteString("🏷️ Kategoriyalar bo'yicha:\n")
	for _, c := range m.Categories {
		fmt.Fprintf(&b, "• %s: %s %s (%s%%)\n",
			c.Category, core.FormatAmount(c.Subtotal), currency, core.FormatPercent(c.Percent))
	}
	fmt.Fprintf(&b, "\n📅 Davr: %s - %s", m.Start.Format(dateLayout), m.End.Format(dateLayout))
	return b.String()
}
