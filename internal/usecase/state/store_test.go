package state

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ramadan-bot/internal/adapters/docstore"
	"ramadan-bot/internal/domain"
)

const testPath = "state.json"

func newTestStore(t *testing.T, now time.Time) (*Store, *docstore.Memory) {
	t.Helper()
	mem := docstore.NewMemory()
	s := New(mem, testPath, Defaults{City: "Algiers", Country: "Algeria"},
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
	)
	return s, mem
}

type failingDocs struct {
	loadErr error
	saveErr error
}

func (f failingDocs) Load(context.Context, string) ([]byte, error) { return nil, f.loadErr }
func (f failingDocs) Save(context.Context, string, []byte) error  { return f.saveErr }

func TestLoadDefaultsWhenMissing(t *testing.T) {
	s, _ := newTestStore(t, time.Now())
	st := s.Load(context.Background())
	if st.Active || !st.CountdownEnabled {
		t.Fatalf("неожиданные флаги по умолчанию: %+v", st)
	}
	if st.DefaultCity != "Algiers" || st.DefaultCountry != "Algeria" {
		t.Fatalf("неожиданная локация по умолчанию: %+v", st)
	}
	if st.Channels == nil || len(st.Channels) != 0 {
		t.Fatalf("ожидали пустой список каналов, получили %v", st.Channels)
	}
}

func TestLoadCorruptOrUnreadableFallsBack(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, time.Now())
	_ = mem.Save(ctx, testPath, []byte("{not json"))
	if st := s.Load(ctx); st.DefaultCity != "Algiers" || st.Active {
		t.Fatalf("повреждённый документ должен давать значения по умолчанию: %+v", st)
	}

	broken := New(failingDocs{loadErr: errors.New("disk")}, testPath, Defaults{City: "Oran"})
	if st := broken.Load(ctx); st.DefaultCity != "Oran" {
		t.Fatalf("ошибка чтения должна давать значения по умолчанию: %+v", st)
	}
}

func TestLoadMergesSavedOverDefaults(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, time.Now())
	_ = mem.Save(ctx, testPath, []byte(`{"active":true,"channels":[{"channelId":"1","city":"Oran","country":"Algeria"}]}`))
	st := s.Load(ctx)
	if !st.Active || !st.CountdownEnabled || st.DefaultCity != "Algiers" {
		t.Fatalf("ожидали слияние с умолчаниями: %+v", st)
	}
	if len(st.Channels) != 1 || st.Channels[0].City != "Oran" {
		t.Fatalf("неожиданные каналы: %+v", st.Channels)
	}
}

func TestLegacyMigration(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, time.Now())
	legacy := `{"ramadanActive":true,"countdownEnabled":false,"channelId":"42","city":"Oran","country":"Algeria",` +
		`"lastIftarSent":"2026-02-20","lastSuhoorSent":"2026-02-19","lastCountdownSent":"2026-02-10"}`
	_ = mem.Save(ctx, testPath, []byte(legacy))

	st := s.Load(ctx)
	if len(st.Channels) != 1 {
		t.Fatalf("ожидали один канал, получили %d", len(st.Channels))
	}
	ch := st.Channels[0]
	if ch.ChannelID != "42" || ch.City != "Oran" || ch.Country != "Algeria" {
		t.Fatalf("неожиданный перенесённый канал: %+v", ch)
	}
	if ch.LastSentDate[domain.MessageIftar] != "2026-02-20" || ch.LastSentDate[domain.MessageSuhoor] != "2026-02-19" {
		t.Fatalf("отметки не перенесены: %v", ch.LastSentDate)
	}
	if !st.Active || st.CountdownEnabled || st.LastCountdownSentDate != "2026-02-10" {
		t.Fatalf("корневые флаги не перенесены: %+v", st)
	}

	raw, err := mem.Load(ctx, testPath)
	if err != nil {
		t.Fatalf("перенесённый документ не записан: %v", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	for _, key := range []string{"channelId", "city", "country", "lastIftarSent", "lastSuhoorSent", "ramadanActive", "lastCountdownSent"} {
		if _, ok := fields[key]; ok {
			t.Fatalf("корневое поле %s должно исчезнуть: %s", key, raw)
		}
	}
}

func TestLegacyMigrationWithNullChannels(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, time.Now())
	_ = mem.Save(ctx, testPath, []byte(`{"channels":null,"channelId":"42","city":"Oran","country":"Algeria"}`))

	st := s.Load(ctx)
	if len(st.Channels) != 1 || st.Channels[0].ChannelID != "42" || st.Channels[0].City != "Oran" {
		t.Fatalf("канал из корня должен переноситься и при channels=null: %+v", st.Channels)
	}
}

func TestLegacyChannelMarkersInsideArray(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, time.Now())
	_ = mem.Save(ctx, testPath, []byte(`{"channels":[{"channelId":"1","city":"Algiers","country":"Algeria","lastTaraweehSent":"2026-03-01"}]}`))
	st := s.Load(ctx)
	if got := st.Channels[0].LastSentDate[domain.MessageTaraweeh]; got != "2026-03-01" {
		t.Fatalf("ожидали перенос lastTaraweehSent, получили %q", got)
	}
}

func TestLedgerMarksPerTypeAndChannel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 20, 19, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, now)
	if _, err := s.UpsertChannel(ctx, "a", "Algiers", "Algeria"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := s.UpsertChannel(ctx, "b", "Paris", "France"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	if s.WasSentToday(ctx, domain.MessageIftar, "a") {
		t.Fatalf("до отметки отправки быть не должно")
	}
	if err := s.MarkSent(ctx, domain.MessageIftar, "a"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !s.WasSentToday(ctx, domain.MessageIftar, "a") {
		t.Fatalf("ожидали отметку для a/iftar")
	}
	if s.WasSentToday(ctx, domain.MessageSuhoor, "a") || s.WasSentToday(ctx, domain.MessageIftar, "b") {
		t.Fatalf("отметка не должна распространяться на другие типы и каналы")
	}
	if err := s.MarkSent(ctx, domain.MessageIftar, "missing"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("ожидали ErrUnknownChannel, получили %v", err)
	}
}

func TestLedgerResetsOnNextDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 2, 20, 23, 59, 0, 0, time.UTC)
	mem := docstore.NewMemory()
	clock := func() time.Time { return now }
	s := New(mem, testPath, Defaults{}, WithClock(func() time.Time { return clock() }), WithLocation(time.UTC))
	_, _ = s.UpsertChannel(ctx, "a", "Algiers", "Algeria")
	_ = s.MarkSent(ctx, domain.MessageSuhoor, "a")

	now = now.Add(2 * time.Minute)
	if s.WasSentToday(ctx, domain.MessageSuhoor, "a") {
		t.Fatalf("после полуночи отметка не должна действовать")
	}
}

func TestGlobalMarkers(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, time.Date(2026, 2, 15, 18, 0, 0, 0, time.UTC))
	if s.CountdownSentToday(ctx) || s.UncertaintyAlertSentToday(ctx) {
		t.Fatalf("отметок быть не должно")
	}
	_ = s.MarkCountdownSent(ctx)
	_ = s.MarkUncertaintyAlertSent(ctx)
	if !s.CountdownSentToday(ctx) || !s.UncertaintyAlertSentToday(ctx) {
		t.Fatalf("ожидали обе отметки")
	}
	if got := s.Load(ctx).LastCountdownSentDate; got != "2026-02-15" {
		t.Fatalf("неожиданная дата: %s", got)
	}
}

func TestUpsertClearsCacheAndRemove(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, time.Now())
	_, _ = s.EnsureChannel(ctx, "a")
	st, _ := s.EnsureChannel(ctx, "a")
	if len(st.Channels) != 1 || st.Channels[0].City != "Algiers" {
		t.Fatalf("EnsureChannel должен создать один канал с городом по умолчанию: %+v", st.Channels)
	}
	if err := s.CachePrayerTimes(ctx, "a", "2026-02-20", domain.PrayerTimes{Fajr: "05:30"}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	st, _ = s.UpsertChannel(ctx, "a", "Oran", "Algeria")
	if st.Channels[0].CachedPrayerTimes != nil || st.Channels[0].CachedPrayerDate != "" {
		t.Fatalf("смена города должна сбрасывать кэш: %+v", st.Channels[0])
	}
	if _, err := s.RemoveChannel(ctx, "a"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := s.RemoveChannel(ctx, "a"); !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("ожидали ErrUnknownChannel, получили %v", err)
	}
}

func TestUpdateSkipsSaveOnError(t *testing.T) {
	ctx := context.Background()
	s, mem := newTestStore(t, time.Now())
	boom := errors.New("boom")
	_, err := s.Update(ctx, func(st *domain.GlobalState) error {
		st.Active = true
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ожидали boom, получили %v", err)
	}
	if _, err := mem.Load(ctx, testPath); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("документ не должен записываться: %v", err)
	}
}

// flakyDocs отказывает в чтении заданное число раз, затем работает как обычное хранилище.
type flakyDocs struct {
	*docstore.Memory
	mu        sync.Mutex
	loadFails int
}

func (f *flakyDocs) Load(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	if f.loadFails > 0 {
		f.loadFails--
		f.mu.Unlock()
		return nil, errors.New("redis: i/o timeout")
	}
	f.mu.Unlock()
	return f.Memory.Load(ctx, path)
}

func (f *flakyDocs) failNextLoad() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadFails = 1
}

func TestUpdateDoesNotOverwriteUnreadableDocument(t *testing.T) {
	ctx := context.Background()
	docs := &flakyDocs{Memory: docstore.NewMemory()}
	s := New(docs, testPath, Defaults{City: "Algiers", Country: "Algeria"},
		WithClock(func() time.Time { return time.Date(2026, 2, 20, 18, 0, 0, 0, time.UTC) }),
		WithLocation(time.UTC),
	)
	_, _ = s.EnsureChannel(ctx, "a")
	_, _ = s.EnsureChannel(ctx, "b")
	if _, err := s.SetActive(ctx, true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	docs.failNextLoad()
	if err := s.MarkCountdownSent(ctx); err == nil || !strings.Contains(err.Error(), "i/o timeout") {
		t.Fatalf("ожидали ошибку чтения, получили %v", err)
	}

	st := s.Load(ctx)
	if !st.Active || len(st.Channels) != 2 {
		t.Fatalf("документ не должен затираться значениями по умолчанию: active=%v channels=%d", st.Active, len(st.Channels))
	}
	if st.LastCountdownSentDate != "" {
		t.Fatalf("отметка не должна записываться после неудачного чтения")
	}
	if err := s.MarkCountdownSent(ctx); err != nil {
		t.Fatalf("после восстановления запись должна проходить: %v", err)
	}
	if !s.CountdownSentToday(ctx) {
		t.Fatalf("отметка отсчёта потеряна")
	}
}

func TestConcurrentMarkSentKeepsAllChannels(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, time.Now())
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		_, _ = s.EnsureChannel(ctx, id)
	}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = s.MarkSent(ctx, domain.MessageIftar, id)
		}(id)
	}
	wg.Wait()
	for _, id := range ids {
		if !s.WasSentToday(ctx, domain.MessageIftar, id) {
			t.Fatalf("отметка для %s потеряна", id)
		}
	}
}

func TestSaveErrorIsReturned(t *testing.T) {
	s := New(failingDocs{loadErr: domain.ErrDocumentNotFound, saveErr: errors.New("readonly")}, testPath, Defaults{})
	if _, err := s.SetActive(context.Background(), true); err == nil || !strings.Contains(err.Error(), "readonly") {
		t.Fatalf("ожидали ошибку записи, получили %v", err)
	}
}

func TestMatchesLocation(t *testing.T) {
	home := []string{"algiers", "algeria"}
	if !MatchesLocation("Algiers", "", home) || !MatchesLocation("Oran", "ALGERIA", home) {
		t.Fatalf("ожидали совпадение")
	}
	if MatchesLocation("Paris", "France", home) || MatchesLocation("Algiers", "", nil) {
		t.Fatalf("совпадения быть не должно")
	}
}
