// Package state implements persistence for the system counters.
//
// The FileRepository stores and loads the counters as JSON on disk and
// exposes a Repository interface so the wiring layer does not depend on the
// storage format.
package state
