// Package vfs defines the vocabulary shared by every layer of the resource
// virtual filesystem: the normalized VirtualPath used as both the overlay
// lookup key and the cache key, and the error taxonomy surfaced to engine
// code. It has no dependencies on sources, the overlay, or the cache so that
// each of those packages can depend on it without import cycles.
package vfs
