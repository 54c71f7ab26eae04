package telegram

import (
	"strings"
	"testing"
)

func TestSplitTextKeepsParagraphs(t *testing.T) {
	text := strings.Repeat("ا", 3000) + "\n\n" + strings.Repeat("ب", 2000) + "\n\n" + strings.Repeat("ج", 500)

	parts := splitText(text, messageLimit)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if n := runeLen(part); n > messageLimit {
			t.Fatalf("часть %d превышает лимит: %d", i, n)
		}
	}
	if parts[0] != strings.Repeat("ا", 3000) {
		t.Fatalf("первая часть должна состоять из первого абзаца")
	}
	if !strings.HasPrefix(parts[1], "ب") || !strings.HasSuffix(parts[1], strings.Repeat("ج", 500)) {
		t.Fatalf("вторая часть должна содержать два последних абзаца")
	}
}

func TestSplitTextLongLine(t *testing.T) {
	parts := splitText(strings.Repeat("x", 25), 10)
	if len(parts) != 3 || parts[2] != "xxxxx" {
		t.Fatalf("неожиданное разбиение: %q", parts)
	}
}

func TestSplitTextShortAndEmpty(t *testing.T) {
	if parts := splitText("  مرحبا  ", messageLimit); len(parts) != 1 || parts[0] != "مرحبا" {
		t.Fatalf("неожиданный результат: %q", parts)
	}
	if parts := splitText(" \n ", messageLimit); parts != nil {
		t.Fatalf("пустой текст не должен давать частей: %q", parts)
	}
}
