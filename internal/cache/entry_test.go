package cache

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLookupAbsentWhenBodyMissing(t *testing.T) {
	key := newTestKey(t)
	state, err := Lookup(context.Background(), NewFileStorage(), key)
	if err != nil {
		t.Fatalf("missing entry should not be an error, got %v", err)
	}
	if state.Present {
		t.Fatalf("expected Absent")
	}
}

func TestLookupRoundTrip(t *testing.T) {
	storage := NewFileStorage()
	key := newTestKey(t)
	ctx := context.Background()

	if err := storage.MkdirAll(ctx, key.Dir); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(key.BodyPath, []byte("a-content"), 0o644); err != nil {
		t.Fatalf("seed body error: %v", err)
	}
	stamp := time.Now().Add(-time.Minute).Truncate(time.Second)
	if err := storage.Touch(ctx, key.BodyPath, stamp); err != nil {
		t.Fatalf("touch error: %v", err)
	}

	header := http.Header{}
	header.Set("X-Test", "test")
	header.Add("Vary", "Accept")
	header.Add("Vary", "Origin")
	if err := SaveHeaders(ctx, storage, key, HeadersFromHTTP(header)); err != nil {
		t.Fatalf("save headers error: %v", err)
	}

	raw, _ := os.ReadFile(key.HeadersPath)
	if !strings.Contains(string(raw), "\n  \"x-test\": \"test\"") {
		t.Fatalf("headers.json should be pretty-printed with lower-case keys: %s", raw)
	}

	state, err := Lookup(ctx, storage, key)
	if err != nil {
		t.Fatalf("lookup error: %v", err)
	}
	if !state.Present || !state.StoredAt.Equal(stamp) {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.Headers["x-test"] != "test" || state.Headers["vary"] != "Accept, Origin" {
		t.Fatalf("unexpected headers %+v", state.Headers)
	}
	if state.Headers.HTTP().Get("X-Test") != "test" {
		t.Fatalf("headers should convert back to http.Header")
	}
}

func TestLookupTreatsCorruptHeadersAsAbsent(t *testing.T) {
	storage := NewFileStorage()
	key := newTestKey(t)
	ctx := context.Background()
	if err := storage.MkdirAll(ctx, key.Dir); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(key.BodyPath, []byte("a-content"), 0o644); err != nil {
		t.Fatalf("seed body error: %v", err)
	}

	state, err := Lookup(ctx, storage, key)
	if state.Present || !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("missing headers.json should be reported as corrupt, got %+v %v", state, err)
	}

	if err := os.WriteFile(key.HeadersPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed headers error: %v", err)
	}
	state, err = Lookup(ctx, storage, key)
	if state.Present || !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("unparseable headers.json should be reported as corrupt, got %+v %v", state, err)
	}
	if _, statErr := os.Stat(key.BodyPath); statErr != nil {
		t.Fatalf("corrupt entries must not be deleted: %v", statErr)
	}
}

func newTestKey(t *testing.T) Key {
	t.Helper()
	key, err := KeyFor(t.TempDir(), mustParse(t, "http://example.com/resource"))
	if err != nil {
		t.Fatalf("key error: %v", err)
	}
	return key
}
