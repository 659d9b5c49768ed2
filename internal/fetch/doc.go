// Package fetch is the caching HTTP client. Request loads the cache snapshot
// for the URL, asks cache.Evaluate what to do, and then serves the stored copy,
// serves it while refreshing in the background, or goes back to the origin
// (with If-None-Match when an ETag is known). Successful GET responses are
// persisted while the caller reads them; transport failures fall back to the
// stored copy when one exists.
//
// Every call settles exactly once. The result is read with Call.Wait, and
// Call.Updates reports cache-update notifications and is closed once all of the
// call's work, background refresh and cache persistence included, has ended.
package fetch
