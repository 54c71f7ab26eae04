package config

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidTimezone значение TZ не распознано как зона IANA.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Location возвращает зону процесса из TZ. Допускаются пробелы и любой регистр: "america/new york".
func (c AppConfig) Location() (*time.Location, error) {
	name := strings.ReplaceAll(strings.TrimSpace(c.TZ), " ", "_")
	if name == "" {
		return nil, ErrInvalidTimezone
	}
	for _, candidate := range []string{name, titleZone(name)} {
		if loc, err := time.LoadLocation(candidate); err == nil {
			return loc, nil
		}
	}
	return nil, ErrInvalidTimezone
}

// titleZone поднимает первую букву каждого слова зоны, остальные опускает.
func titleZone(name string) string {
	out := []rune(strings.ToLower(name))
	for i, r := range out {
		if i == 0 || strings.ContainsRune("/_-", out[i-1]) {
			out[i] = unicode.ToUpper(r)
		}
	}
	return string(out)
}
