// Package migration moves a deployment from one storage backend to
// another.
//
// An operator stages the change by writing storage-new.yml next to the
// active storage.yml. At startup (or, with a Watcher, while running) the
// Coordinator opens the new backend, copies every record of every table,
// closes the old backend and rotates the files:
//
//	storage.yml      -> storage-old.yml
//	storage-new.yml  -> storage.yml
//
// The rotation is guarded by a journal file, storage-migration.json,
// written before the first rename and removed after the last. Recover
// finishes a rotation that a crash interrupted; it never copies data
// again.
package migration
