// Package build regenerates artifacts incrementally.
//
// A Rule produces one target file from its dependencies. The target is
// stale when it is absent or when a dependency is newer than the later of
// its on-disk modification time and the last-known-good time recorded in
// the Cache. A stale target is rendered and compared with the file on
// disk; it is written only when the bytes differ, so unchanged output keeps
// its modification time and downstream tools do not rebuild. When the bytes
// are equal the last-known-good time advances instead.
//
// The Cache lives for one process: it is opened at start, passed to the
// rules and closed at the end, which saves it to its Store. FileStore keeps
// a msgpack snapshot in the cache directory; SQLiteStore keeps the same
// state in a SQLite database shared by several checkouts.
//
// A Manager runs rules on a bounded worker pool and reports an Outcome per
// target. Watcher reruns a build when schema files change.
package build
