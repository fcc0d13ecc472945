// Package versionstore provides append-only, ordered storage of version
// chains keyed by stable ID and partitioned by record kind.
//
// Three backends implement the Store interface: MemoryStore for tests and
// ephemeral use, FileStore for a JSON-file-per-version directory layout, and
// BadgerStore for an embedded key-value database. The evolution tracker is
// the only writer; query components read histories through the same
// interface.
package versionstore
