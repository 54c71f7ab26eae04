package state

import (
	"encoding/json"

	"ramadan-bot/internal/domain"
)

// Ключи отметок отправки в старом формате канала.
var legacySentKeys = map[string]domain.MessageType{
	"lastIftarSent":       domain.MessageIftar,
	"lastSuhoorSent":      domain.MessageSuhoor,
	"lastTaraweehSent":    domain.MessageTaraweeh,
	"lastEarlySuhoorSent": domain.MessageEarlySuhoor,
	"lastIftarImageSent":  domain.MessageIftarImage,
}

// Корневые флаги старого формата и их новые имена.
var legacyRootKeys = map[string]string{
	"ramadanActive":        "active",
	"lastCountdownSent":    "lastCountdownSentDate",
	"lastNightOfDoubtSent": "lastUncertaintyAlertSentDate",
}

// migrateLegacy приводит документ к текущей схеме на месте и сообщает, менялся ли он.
func migrateLegacy(fields map[string]json.RawMessage, defaults Defaults) bool {
	changed := false

	for oldKey, newKey := range legacyRootKeys {
		v, ok := fields[oldKey]
		if !ok {
			continue
		}
		if _, exists := fields[newKey]; !exists && string(v) != "null" {
			fields[newKey] = v
		}
		delete(fields, oldKey)
		changed = true
	}

	if raw, hasChannels := fields["channels"]; !hasChannels || string(raw) == "null" {
		var channelID string
		if raw, ok := fields["channelId"]; ok {
			_ = json.Unmarshal(raw, &channelID)
		}
		if channelID != "" {
			legacy := map[string]json.RawMessage{"channelId": fields["channelId"]}
			for _, key := range []string{"city", "country", "roleId", "cachedPrayerTimes", "cachedPrayerDate"} {
				if v, ok := fields[key]; ok {
					legacy[key] = v
				}
			}
			for key := range legacySentKeys {
				if v, ok := fields[key]; ok {
					legacy[key] = v
				}
			}
			fillLocation(legacy, defaults)
			migrateChannelMarkers(legacy)
			entry, _ := json.Marshal(legacy)
			fields["channels"] = json.RawMessage("[" + string(entry) + "]")
			changed = true
		}
		for _, key := range []string{"channelId", "city", "country", "roleId", "cachedPrayerTimes", "cachedPrayerDate"} {
			if _, ok := fields[key]; ok {
				delete(fields, key)
				changed = true
			}
		}
		for key := range legacySentKeys {
			if _, ok := fields[key]; ok {
				delete(fields, key)
				changed = true
			}
		}
		return changed
	}

	var channels []map[string]json.RawMessage
	if err := json.Unmarshal(fields["channels"], &channels); err != nil {
		return changed
	}
	channelsChanged := false
	for _, ch := range channels {
		if migrateChannelMarkers(ch) {
			channelsChanged = true
		}
	}
	if channelsChanged {
		if data, err := json.Marshal(channels); err == nil {
			fields["channels"] = data
			changed = true
		}
	}
	return changed
}

// migrateChannelMarkers переносит lastXxxSent в карту lastSentDate.
func migrateChannelMarkers(ch map[string]json.RawMessage) bool {
	sent := map[domain.MessageType]string{}
	if raw, ok := ch["lastSentDate"]; ok {
		_ = json.Unmarshal(raw, &sent)
	}
	changed := false
	for key, typ := range legacySentKeys {
		raw, ok := ch[key]
		if !ok {
			continue
		}
		var date string
		if err := json.Unmarshal(raw, &date); err == nil && date != "" {
			if _, exists := sent[typ]; !exists {
				sent[typ] = date
			}
		}
		delete(ch, key)
		changed = true
	}
	if changed {
		data, _ := json.Marshal(sent)
		ch["lastSentDate"] = data
	}
	return changed
}

func fillLocation(ch map[string]json.RawMessage, defaults Defaults) {
	fill := func(key, value string) {
		var cur string
		if raw, ok := ch[key]; ok {
			_ = json.Unmarshal(raw, &cur)
		}
		if cur == "" {
			data, _ := json.Marshal(value)
			ch[key] = data
		}
	}
	fill("city", defaults.City)
	fill("country", defaults.Country)
}
