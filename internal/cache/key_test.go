package cache

import (
	"net/url"
	"path/filepath"
	"strings"
	"testing"
)

func TestKeyForIsDeterministicAndReadable(t *testing.T) {
	root := t.TempDir()
	u := mustParse(t, "http://localhost:8080/some/path?q=1")

	first, err := KeyFor(root, u)
	if err != nil {
		t.Fatalf("key error: %v", err)
	}
	second, _ := KeyFor(root, mustParse(t, "http://localhost:8080/some/path?q=1"))
	if first != second {
		t.Fatalf("key should be deterministic: %+v vs %+v", first, second)
	}
	if !strings.HasPrefix(first.Name, "localhost_8080_some_path_q_1-") {
		t.Fatalf("unexpected readable prefix: %s", first.Name)
	}
	if filepath.Dir(first.Dir) != root {
		t.Fatalf("entry dir should live directly under the root, got %s", first.Dir)
	}
	if filepath.Base(first.BodyPath) != "body" || filepath.Base(first.HeadersPath) != "headers.json" {
		t.Fatalf("unexpected file names: %s %s", first.BodyPath, first.HeadersPath)
	}
}

func TestKeyForSeparatesSimilarURLs(t *testing.T) {
	root := t.TempDir()
	a, _ := KeyFor(root, mustParse(t, "http://example.com/a.b"))
	b, _ := KeyFor(root, mustParse(t, "http://example.com/a?b"))
	if a.Name == b.Name {
		t.Fatalf("urls sharing a slug must still get distinct keys: %s", a.Name)
	}
}

func TestKeyForTruncatesLongSlugs(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("segment/", 20)
	key, err := KeyFor(t.TempDir(), mustParse(t, long))
	if err != nil {
		t.Fatalf("key error: %v", err)
	}
	parts := strings.Split(key.Name, "-")
	hash := parts[len(parts)-1]
	if len(hash) != hashLength {
		t.Fatalf("expected %d hex chars of hash, got %q", hashLength, hash)
	}
	if len(key.Name) != slugMaxLength+1+hashLength {
		t.Fatalf("unexpected key length %d: %s", len(key.Name), key.Name)
	}
	if !strings.HasPrefix(key.Name, "https_example_com_") {
		t.Fatalf("https prefix should be kept: %s", key.Name)
	}
}

func TestKeyForDropsDefaultPort(t *testing.T) {
	root := t.TempDir()
	withPort, _ := KeyFor(root, mustParse(t, "http://example.com:80/x"))
	without, _ := KeyFor(root, mustParse(t, "http://example.com/x"))
	if withPort != without {
		t.Fatalf("default port should not change the key: %s vs %s", withPort.Name, without.Name)
	}
	other, _ := KeyFor(root, mustParse(t, "http://example.com:8080/x"))
	if other == without {
		t.Fatalf("non-default port must change the key")
	}
}

func TestKeyForRequiresRoot(t *testing.T) {
	if _, err := KeyFor("", mustParse(t, "http://example.com/")); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return u
}
