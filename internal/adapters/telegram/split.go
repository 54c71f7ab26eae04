package telegram

import "strings"

const messageLimit = 4096

// splitText режет текст на части не длиннее limit рун, склеивая целые абзацы.
// Абзац длиннее лимита режется по строкам, строка длиннее лимита по рунам.
func splitText(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= limit {
		return []string{text}
	}

	var parts []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, s)
		}
		current.Reset()
	}
	appendPiece := func(piece, sep string) {
		if current.Len() > 0 && runeLen(current.String())+runeLen(sep)+runeLen(piece) > limit {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range strings.Split(text, "\n\n") {
		if runeLen(para) <= limit {
			appendPiece(para, "\n\n")
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			for _, chunk := range chunkRunes(line, limit) {
				appendPiece(chunk, "\n")
			}
		}
	}
	flush()
	return parts
}

func chunkRunes(s string, limit int) []string {
	runes := []rune(s)
	if len(runes) <= limit {
		return []string{s}
	}
	var out []string
	for len(runes) > limit {
		out = append(out, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
