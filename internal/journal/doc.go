// Package journal persists the notification stream as an append-only,
// digest-chained record log. It is an external observer of the state core:
// the core never reads the journal, and journal failures never affect a
// committed operation. Memory and MySQL stores share one query surface.
package journal
