package reminder

import (
	"fmt"
	"html"
	"strings"

	"ramadan-bot/internal/domain"
)

type template struct {
	emoji string
	title string
	body  string
	dua   string
	label string
}

var templates = map[domain.MessageType]template{
	domain.MessageIftar: {
		emoji: "✨",
		title: "صحا فطوركم",
		body:  "تقبل الله منا ومنكم صيامنا وقيامنا",
		dua:   "اللهم لك صمت وعلى رزقك أفطرت",
		label: "🌅 الإفطار",
	},
	domain.MessageSuhoor: {
		emoji: "🌙",
		title: "صحا سحوركم",
		body:  "لا تنسوا النية والدعاء",
		dua:   "وبالأسحار هم يستغفرون",
		label: "🌃 السحور",
	},
	domain.MessageEarlySuhoor: {
		emoji: "🍲",
		title: "تذكير بالسحور",
		body:  "ساعة قبل الإمساك - اغتنموا وقت السحر بالاستغفار والدعاء",
		dua:   "اللهم إني أسألك خير هذه الساعة وخير ما فيها",
		label: "⏰ الوقت",
	},
	domain.MessageTaraweeh: {
		emoji: "🕌",
		title: "صلاة العشاء والتراويح",
		body:  "حان وقت الاستعداد لصلاة العشاء والتراويح. تقبل الله قيامكم",
		dua:   "مَنْ قَامَ رَمَضَانَ إِيمَانًا وَاحْتِسَابًا غُفِرَ لَهُ مَا تَقَدَّمَ مِنْ ذَنْبِهِ",
		label: "⏰ الوقت",
	},
}

var hadiths = map[domain.MessageType]string{
	domain.MessageIftar:  "ذَهَبَ الظَّمَأُ وَابْتَلَّتِ الْعُرُوقُ وَثَبَتَ الأَجْرُ إِنْ شَاءَ اللهُ",
	domain.MessageSuhoor: "السحور بركة فلا تدعوه ولو أن يجرع أحدكم جرعة ماء",
}

const footer = "🌙 رمضان كريم"

// Details данные, подставляемые в напоминание.
type Details struct {
	City       string
	PrayerTime string
	LunarDate  string
}

// Reminder формирует ежедневное напоминание указанного типа.
func Reminder(typ domain.MessageType, d Details) (domain.Message, error) {
	tpl, ok := templates[typ]
	if !ok {
		return domain.Message{}, fmt.Errorf("unknown message type %q", typ)
	}
	sections := []string{
		heading(tpl.emoji, tpl.title),
		"<b>" + escapeHTML(tpl.body) + "</b>",
		"<i>" + escapeHTML(tpl.dua) + "</i>",
	}
	if fields := detailLines(tpl.label, d); fields != "" {
		sections = append(sections, fields)
	}
	if hadith, ok := hadiths[typ]; ok {
		sections = append(sections, "📿 حديث اليوم\n<i>"+escapeHTML(hadith)+"</i>")
	}
	sections = append(sections, footer)
	return domain.Message{Text: strings.Join(sections, "\n\n"), Mention: true}, nil
}

// SeasonStarted уведомление о начале сезона.
func SeasonStarted(lunarDate string) domain.Message {
	sections := []string{
		"🎉 <b>رمضان كريم!</b> 🌙",
		heading("🎉", "رمضان مبارك!"),
		"<b>تم تفعيل رسائل رمضان. تقبل الله منا ومنكم</b>",
		"<i>شَهْرُ رَمَضَانَ الَّذِي أُنزِلَ فِيهِ الْقُرْآنُ هُدًى لِّلنَّاسِ وَبَيِّنَاتٍ مِّنَ الْهُدَىٰ وَالْفُرْقَانِ</i>\n— سورة البقرة (185)",
	}
	if lunarDate != "" {
		sections = append(sections, "📅 التاريخ: "+escapeHTML(lunarDate))
	}
	sections = append(sections, footer)
	return domain.Message{Text: strings.Join(sections, "\n\n"), Mention: true}
}

// SeasonEnded уведомление об окончании сезона.
func SeasonEnded() domain.Message {
	sections := []string{
		heading("🌟", "عيد مبارك!"),
		"<b>تم إيقاف رسائل رمضان. كل عام وأنتم بخير</b>",
		"<i>تقبل الله منا ومنكم</i>",
		footer,
	}
	return domain.Message{Text: strings.Join(sections, "\n\n"), Mention: true}
}

// Uncertainty оповещение о ночи сомнения.
func Uncertainty(lunarDate string) domain.Message {
	sections := []string{
		"🔔 <b>تنبيه مهم للجميع!</b>",
		heading("🔍", "ليلة الشك"),
		"<b>ننتظر ثبوت رؤية هلال رمضان المبارك</b>",
		"⚠️ <b>يرجى انتظار إعلان ثبوت الرؤية الرسمي</b>",
	}
	if lunarDate != "" {
		sections = append(sections, "📅 التاريخ: "+escapeHTML(lunarDate))
	}
	sections = append(sections, footer)
	return domain.Message{Text: strings.Join(sections, "\n\n"), Mention: true}
}

// Countdown сообщение обратного отсчёта.
func Countdown(days int, lunarDate, expectedDate string) domain.Message {
	var b strings.Builder
	b.WriteString("🌙 <b>العد التنازلي لرمضان المبارك</b>\n\n")
	switch days {
	case 0:
		b.WriteString("🎉 <b>اليوم أول أيام رمضان!</b>\n<i>رمضان كريم، تقبل الله منا ومنكم الصيام والقيام</i>")
	case 1:
		b.WriteString("🔍 <b>ليلة الشك</b>\n<i>نترقب الهلال بشوق ودعاء...</i>")
	default:
		fmt.Fprintf(&b, "⏳ <b>الأيام المتبقية</b>\n\n<b>[ %d ] يـوم</b>\n\n<i>اللهم بلغنا رمضان لا فاقدين ولا مفقودين</i>", days)
	}
	if lunarDate != "" {
		b.WriteString("\n\n📅 التاريخ الهجري: " + escapeHTML(lunarDate))
	}
	if expectedDate != "" {
		b.WriteString("\n📆 الموعد المتوقع: " + escapeHTML(expectedDate))
	}
	b.WriteString("\n\n💫 اللهم بلغنا رمضان | ⚠️ التاريخ تقريبي")
	return domain.Message{Text: b.String()}
}

// DailySchedule текстовая имсакия на день.
func DailySchedule(city, lunarDate, gregorianDate string, t domain.PrayerTimes) domain.Message {
	rows := []struct {
		name  string
		value string
	}{
		{"الفجر", t.Fajr},
		{"الشروق", t.Sunrise},
		{"الظهر", t.Dhuhr},
		{"العصر", t.Asr},
		{"المغرب", t.Maghrib},
		{"العشاء", t.Isha},
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>إمساكية اليوم - %s</b>", escapeHTML(city))
	if gregorianDate != "" {
		b.WriteString("\n" + escapeHTML(gregorianDate))
	}
	if lunarDate != "" {
		b.WriteString("\n" + escapeHTML(lunarDate))
	}
	b.WriteString("\n")
	for _, r := range rows {
		value := r.value
		if value == "" {
			value = "غير متوفر"
		}
		fmt.Fprintf(&b, "\n%s: <code>%s</code>", r.name, escapeHTML(value))
	}
	return domain.Message{Text: b.String()}
}

func heading(emoji, title string) string {
	return fmt.Sprintf("%s <b>%s</b> %s", emoji, escapeHTML(title), emoji)
}

func detailLines(label string, d Details) string {
	var lines []string
	if city := strings.TrimSpace(d.City); city != "" {
		lines = append(lines, "🕌 المدينة: <code>"+escapeHTML(city)+"</code>")
	}
	if t := strings.TrimSpace(d.PrayerTime); t != "" {
		lines = append(lines, label+": <b>"+escapeHTML(t)+"</b>")
	}
	if date := strings.TrimSpace(d.LunarDate); date != "" {
		lines = append(lines, "📅 التاريخ: "+escapeHTML(date))
	}
	return strings.Join(lines, "\n")
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
