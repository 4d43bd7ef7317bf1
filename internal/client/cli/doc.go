// Package cli provides the interactive habitsync command-line client.
//
// It wires configuration, the local record store, the sync engine and the
// remote client, and runs an interactive REPL that keeps working offline.
// Typical flow: log in, let the connectivity watcher activate sync, and
// edit records while changes replicate in the background.
//
// Key features:
//   - Login / Logout (online with offline fallback)
//   - Add, edit, practice, archive, restore and delete affirmations
//   - Attach audio recordings
//   - Sync on demand and sync status
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
