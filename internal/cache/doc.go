// Package cache keeps decoded resources in memory keyed by VirtualPath. Entries
// are governed by two rules: an entry with outstanding handles is never
// evicted, and an unreferenced entry survives only while its idle time, in
// engine ticks, does not exceed the configured TTL. Loads go through the
// overlay resolver and a caller-supplied decoder; concurrent misses on the
// same path are coalesced behind a per-path lock so each path decodes once.
//
// The cache is the only party allowed to destroy a decoded object. When an
// entry is destroyed and its value implements io.Closer, Close is called.
package cache
