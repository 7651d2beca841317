// Package source provides uniform read-only access to one mounted location of
// the resource overlay. A location is either a directory tree or a ZIP
// archive; both are exposed through the Source interface so the overlay can
// treat them interchangeably. A third, in-memory variant backs injected
// resources.
//
// Directory sources take a listing snapshot at mount time. Files created in
// the directory after it was mounted are not visible through the source; to
// publish new content at runtime, mount a new location on top instead of
// mutating an existing one. Archive sources index the central directory once
// at mount time and serve reads by offset.
package source
