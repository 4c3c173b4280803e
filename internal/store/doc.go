// Package store persists provider settings and the chat exchange log in SQLite.
//
// Settings are a flat key/value table replaced as a whole by the
// configuration page (ApplySettings runs in one transaction). Exchanges are
// append-only audit rows, one per chat request, carrying only metadata:
// provider, model, message count, outcome, and timing. Message text is never
// stored.
//
// SQLiteStore uses modernc.org/sqlite (pure Go, no cgo). MockStore is an
// in-memory implementation for tests.
package store
