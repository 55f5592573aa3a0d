package vault

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/handover/handover/internal/domain/normalize"
)

func testSegments() []normalize.RawSegment {
	return []normalize.RawSegment{
		{SegmentID: "s1", RawText: "701호 김민준 환자 혈압 130/80", StartMs: 0, EndMs: 3000},
		{SegmentID: "s2", RawText: "새벽 2시 혈당 재측정 필요", StartMs: 3000, EndMs: 6000},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	v := New("handover", "ward7", NewMemoryStorage(), zerolog.Nop())

	segments := testSegments()
	if !v.SaveRawSegments(ctx, "sess-1", segments, time.Hour) {
		t.Fatal("save failed")
	}
	got := v.LoadRawSegments(ctx, "sess-1")
	if !reflect.DeepEqual(got, segments) {
		t.Errorf("round trip mismatch:\ngot:  %+v\nwant: %+v", got, segments)
	}
}

func TestCiphertextAtRest(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	v := New("handover", "ward7", storage, zerolog.Nop())

	if !v.SaveRawSegments(ctx, "sess-1", testSegments(), time.Hour) {
		t.Fatal("save failed")
	}

	data, found, err := storage.Get(ctx, "handover:ward7:raw:sess-1")
	if err != nil || !found {
		t.Fatalf("record not under expected key: found=%v err=%v", found, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("record not a JSON envelope: %v", err)
	}
	if rec.SessionID != "sess-1" {
		t.Errorf("record session = %q", rec.SessionID)
	}
	if len(rec.IV) != 12 {
		t.Errorf("iv length = %d, want 12", len(rec.IV))
	}
	if rec.ExpiresAt <= rec.CreatedAt {
		t.Errorf("expiry %d not after creation %d", rec.ExpiresAt, rec.CreatedAt)
	}
	// The stored bytes must not contain the plaintext.
	var probe struct {
		Segments []normalize.RawSegment
	}
	if json.Unmarshal(rec.Ciphertext, &probe) == nil && len(probe.Segments) > 0 {
		t.Error("ciphertext decodes as plaintext segments")
	}
}

func TestFreshIVPerWrite(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	v := New("handover", "ward7", storage, zerolog.Nop())

	readIV := func() []byte {
		data, _, _ := storage.Get(ctx, "handover:ward7:raw:sess-1")
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		return rec.IV
	}

	v.SaveRawSegments(ctx, "sess-1", testSegments(), time.Hour)
	first := readIV()
	v.SaveRawSegments(ctx, "sess-1", testSegments(), time.Hour)
	second := readIV()

	if reflect.DeepEqual(first, second) {
		t.Error("iv reused across writes")
	}
}

func TestLoadMissingSession(t *testing.T) {
	v := New("handover", "ward7", NewMemoryStorage(), zerolog.Nop())
	if got := v.LoadRawSegments(context.Background(), "nope"); got != nil {
		t.Errorf("missing session returned %+v", got)
	}
}

func TestCryptoShred(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	ks := NewMemoryKeyStore()
	v := New("handover", "ward7", storage, zerolog.Nop(), WithKeyStore(ks))

	v.SaveRawSegments(ctx, "sess-1", testSegments(), time.Hour)
	v.SaveStructuredResult(ctx, "sess-1", []byte(`{"sessionId":"sess-1"}`), time.Hour)

	v.CryptoShredSession(ctx, "sess-1")

	if got := v.LoadRawSegments(ctx, "sess-1"); got != nil {
		t.Errorf("raw recoverable after shred: %+v", got)
	}
	if got := v.LoadStructuredResult(ctx, "sess-1"); got != nil {
		t.Errorf("result recoverable after shred: %v", got)
	}
	if _, found, _ := ks.GetKey(ctx, "handover:ward7:key:sess-1"); found {
		t.Error("session key survived shred")
	}
	// Shredding an already-shredded session must not fail.
	v.CryptoShredSession(ctx, "sess-1")
}

func TestShredIsKeyDestruction(t *testing.T) {
	// Even if the ciphertext record somehow survives in storage, a
	// shredded key makes it unrecoverable.
	ctx := context.Background()
	storage := NewMemoryStorage()
	v := New("handover", "ward7", storage, zerolog.Nop())

	v.SaveRawSegments(ctx, "sess-1", testSegments(), time.Hour)
	data, _, _ := storage.Get(ctx, "handover:ward7:raw:sess-1")

	v.CryptoShredSession(ctx, "sess-1")
	// Restore the ciphertext behind the vault's back.
	storage.Set(ctx, "handover:ward7:raw:sess-1", data)

	if got := v.LoadRawSegments(ctx, "sess-1"); got != nil {
		t.Errorf("ciphertext decrypted without its key: %+v", got)
	}
}

func TestKeySurvivesRestartViaKeystore(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	ks := NewMemoryKeyStore()

	v1 := New("handover", "ward7", storage, zerolog.Nop(), WithKeyStore(ks))
	v1.SaveRawSegments(ctx, "sess-1", testSegments(), time.Hour)

	// Fresh vault over the same storage and keystore simulates a restart.
	v2 := New("handover", "ward7", storage, zerolog.Nop(), WithKeyStore(ks))
	if got := v2.LoadRawSegments(ctx, "sess-1"); got == nil {
		t.Error("key not re-imported from keystore after restart")
	}

	// Without the keystore the restart loses the key for good.
	v3 := New("handover", "ward7", storage, zerolog.Nop())
	if got := v3.LoadRawSegments(ctx, "sess-1"); got != nil {
		t.Error("segments recovered without key or keystore")
	}
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := &fakeClock{t: now}
	v := New("handover", "ward7", NewMemoryStorage(), zerolog.Nop(), WithClock(clock.Now))

	v.SaveRawSegments(ctx, "sess-1", testSegments(), 1000*time.Millisecond)

	if got := v.LoadRawSegments(ctx, "sess-1"); got == nil {
		t.Fatal("fresh record not readable")
	}

	clock.Advance(1100 * time.Millisecond)
	if got := v.LoadRawSegments(ctx, "sess-1"); got != nil {
		t.Errorf("expired record still readable: %+v", got)
	}
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	ks := NewMemoryKeyStore()
	clock := &fakeClock{t: time.Now()}
	v := New("handover", "ward7", storage, zerolog.Nop(), WithKeyStore(ks), WithClock(clock.Now))

	v.SaveRawSegments(ctx, "sess-old", testSegments(), 1000*time.Millisecond)
	v.SaveRawSegments(ctx, "sess-new", testSegments(), time.Hour)

	clock.Advance(1100 * time.Millisecond)

	if got := v.PurgeExpired(ctx); got != 1 {
		t.Errorf("first purge = %d, want 1", got)
	}
	// Idempotent: nothing left to purge.
	if got := v.PurgeExpired(ctx); got != 0 {
		t.Errorf("second purge = %d, want 0", got)
	}

	if got := v.LoadRawSegments(ctx, "sess-old"); got != nil {
		t.Errorf("purged session recoverable: %+v", got)
	}
	if got := v.LoadRawSegments(ctx, "sess-new"); got == nil {
		t.Error("unexpired session lost to purge")
	}
	if _, found, _ := ks.GetKey(ctx, "handover:ward7:key:sess-old"); found {
		t.Error("purged session key survived")
	}
}

func TestFailingStorageFailsClosed(t *testing.T) {
	ctx := context.Background()
	v := New("handover", "ward7", &failingStorage{}, zerolog.Nop())

	if v.SaveRawSegments(ctx, "sess-1", testSegments(), time.Hour) {
		t.Error("save reported success on failing storage")
	}
	if got := v.LoadRawSegments(ctx, "sess-1"); got != nil {
		t.Errorf("load returned data from failing storage: %+v", got)
	}
	// Shred and purge must swallow storage errors.
	v.CryptoShredSession(ctx, "sess-1")
	if got := v.PurgeExpired(ctx); got != 0 {
		t.Errorf("purge on failing storage = %d, want 0", got)
	}
}

func TestMemoryStorageCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	val := []byte("abc")
	s.Set(ctx, "k", val)
	val[0] = 'x'
	got, _, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value aliases caller slice: %q", got)
	}
	got[0] = 'y'
	again, _, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("returned value aliases store: %q", again)
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type failingStorage struct{}

func (f *failingStorage) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("storage unavailable")
}

func (f *failingStorage) Set(context.Context, string, []byte) error {
	return errors.New("storage unavailable")
}

func (f *failingStorage) Delete(context.Context, string) error {
	return errors.New("storage unavailable")
}
