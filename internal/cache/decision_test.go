package cache

import (
	"net/http"
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	storedAgo := func(d time.Duration) State {
		return State{Present: true, StoredAt: now.Add(-d), Headers: Headers{"etag": `"v1"`}}
	}

	cases := []struct {
		name   string
		state  State
		policy Policy
		want   Decision
	}{
		{
			name:   "absent entry fetches remote",
			state:  Absent,
			policy: Policy{Method: http.MethodGet, MaxAge: time.Minute},
			want:   Decision{Kind: FetchRemote},
		},
		{
			name:   "non-GET never uses cache",
			state:  storedAgo(time.Second),
			policy: Policy{Method: http.MethodPost, MaxAge: time.Hour, MaxStale: Unbounded},
			want:   Decision{Kind: FetchRemote},
		},
		{
			name:   "fresh entry served",
			state:  storedAgo(30 * time.Second),
			policy: Policy{Method: http.MethodGet, MaxAge: time.Minute},
			want:   Decision{Kind: ServeCached},
		},
		{
			name:   "empty method defaults to GET",
			state:  storedAgo(30 * time.Second),
			policy: Policy{MaxAge: time.Minute},
			want:   Decision{Kind: ServeCached},
		},
		{
			name:   "age equal to max-age is not fresh",
			state:  storedAgo(time.Minute),
			policy: Policy{Method: http.MethodGet, MaxAge: time.Minute},
			want:   Decision{Kind: FetchRemote, ConditionalETag: `"v1"`},
		},
		{
			name:   "stale entry inside max-stale window",
			state:  storedAgo(2 * time.Minute),
			policy: Policy{Method: http.MethodGet, MaxAge: time.Minute, MaxStale: Unbounded},
			want:   Decision{Kind: ServeCachedThenRefresh},
		},
		{
			name:   "stale entry beyond max-stale window",
			state:  storedAgo(3 * time.Minute),
			policy: Policy{Method: http.MethodGet, MaxAge: time.Minute, MaxStale: time.Minute},
			want:   Decision{Kind: FetchRemote, ConditionalETag: `"v1"`},
		},
		{
			name:   "max-age zero falls through to max-stale",
			state:  storedAgo(0),
			policy: Policy{Method: http.MethodGet, MaxStale: time.Minute},
			want:   Decision{Kind: ServeCachedThenRefresh},
		},
		{
			name:   "no policy always revalidates",
			state:  storedAgo(time.Millisecond),
			policy: Policy{Method: http.MethodGet},
			want:   Decision{Kind: FetchRemote, ConditionalETag: `"v1"`},
		},
		{
			name:   "negative durations are ignored",
			state:  storedAgo(time.Second),
			policy: Policy{Method: http.MethodGet, MaxAge: -time.Hour, MaxStale: -time.Hour},
			want:   Decision{Kind: FetchRemote, ConditionalETag: `"v1"`},
		},
		{
			name:   "missing etag yields unconditional fetch",
			state:  State{Present: true, StoredAt: now.Add(-time.Hour), Headers: Headers{}},
			policy: Policy{Method: http.MethodGet, MaxAge: time.Minute},
			want:   Decision{Kind: FetchRemote},
		},
		{
			name:   "unbounded max-age never overflows",
			state:  storedAgo(24 * time.Hour),
			policy: Policy{Method: http.MethodGet, MaxAge: Unbounded, MaxStale: Unbounded},
			want:   Decision{Kind: ServeCached},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.state, tc.policy, now)
			if got != tc.want {
				t.Fatalf("expected %+v (%s), got %+v (%s)", tc.want, tc.want.Kind, got, got.Kind)
			}
		})
	}
}

func TestHeadersETagIsCaseInsensitive(t *testing.T) {
	if got := (Headers{"ETag": "abc"}).ETag(); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
