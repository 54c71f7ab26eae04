package reminder

import (
	"strings"
	"testing"

	"ramadan-bot/internal/domain"
)

func TestReminderIncludesDetails(t *testing.T) {
	msg, err := Reminder(domain.MessageIftar, Details{City: "Algiers", PrayerTime: "18:21", LunarDate: "3 رمضان 1447 هـ"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, want := range []string{"صحا فطوركم", "اللهم لك صمت وعلى رزقك أفطرت", "Algiers", "18:21", "3 رمضان 1447 هـ", "حديث اليوم"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("в тексте нет %q:\n%s", want, msg.Text)
		}
	}
	if !msg.Mention {
		t.Fatalf("напоминание должно уведомлять всех")
	}
}

func TestReminderForEveryScheduledType(t *testing.T) {
	for _, typ := range domain.ScheduledTypes {
		msg, err := Reminder(typ, Details{})
		if err != nil {
			t.Fatalf("%s: не ожидали ошибку: %v", typ, err)
		}
		if strings.Contains(msg.Text, "المدينة") {
			t.Fatalf("%s: пустые поля не должны выводиться", typ)
		}
	}
	if _, err := Reminder(domain.MessageIftarImage, Details{}); err == nil {
		t.Fatalf("ожидали ошибку для типа без шаблона")
	}
}

func TestReminderEscapesCity(t *testing.T) {
	msg, _ := Reminder(domain.MessageSuhoor, Details{City: "<b>x</b>"})
	if strings.Contains(msg.Text, "<b>x</b>") || !strings.Contains(msg.Text, "&lt;b&gt;x&lt;/b&gt;") {
		t.Fatalf("город не экранирован: %s", msg.Text)
	}
}

func TestCountdownWording(t *testing.T) {
	cases := []struct {
		days int
		want string
	}{
		{0, "اليوم أول أيام رمضان!"},
		{1, "ليلة الشك"},
		{2, "[ 2 ] يـوم"},
		{17, "[ 17 ] يـوم"},
	}
	for _, tc := range cases {
		msg := Countdown(tc.days, "", "")
		if !strings.Contains(msg.Text, tc.want) {
			t.Fatalf("%d: в тексте нет %q:\n%s", tc.days, tc.want, msg.Text)
		}
	}
	if msg := Countdown(5, "12 شعبان 1447 هـ", "2026-02-18"); !strings.Contains(msg.Text, "2026-02-18") || !strings.Contains(msg.Text, "12 شعبان") {
		t.Fatalf("нет дат в тексте:\n%s", msg.Text)
	}
}

func TestNotices(t *testing.T) {
	if !strings.Contains(SeasonStarted("").Text, "رمضان مبارك!") {
		t.Fatalf("нет заголовка начала сезона")
	}
	if !strings.Contains(SeasonEnded().Text, "عيد مبارك!") {
		t.Fatalf("нет заголовка окончания сезона")
	}
	if !strings.Contains(Uncertainty("29 شعبان").Text, "ننتظر ثبوت رؤية هلال رمضان المبارك") {
		t.Fatalf("нет текста ночи сомнения")
	}
}

func TestDailySchedule(t *testing.T) {
	msg := DailySchedule("Oran", "", "2026-02-20", domain.PrayerTimes{Fajr: "05:39", Maghrib: "18:21"})
	for _, want := range []string{"Oran", "05:39", "18:21", "غير متوفر", "2026-02-20"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("в тексте нет %q:\n%s", want, msg.Text)
		}
	}
}
