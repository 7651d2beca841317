// Package overlay merges an ordered, append-only list of package sources into
// one namespace. Priority equals mount order: the most recently mounted source
// that contains a path owns it. Resolutions are memoized, and the memo table
// is cleared wholesale on every mount so a new source can never be masked by a
// stale resolution.
package overlay
