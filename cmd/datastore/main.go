// Datastore is the operator command for the key/value data store.
//
// It opens the storage backend selected by storage.yml, reads and writes
// individual values, provisions the declared schema and migrates data to
// a new backend when storage-new.yml is present.
//
// Usage:
//
//	# Run the store with interval flushing, metrics and the migration watcher
//	datastore run --config /path/to/config.yaml
//
//	# Read and write single values
//	datastore get players 069a79f4-44e9-4726-a5be-fca90e38aaf5 coins
//	datastore set players 069a79f4-44e9-4726-a5be-fca90e38aaf5 coins 75
//
//	# Dump a table
//	datastore dump players --format csv
//
//	# Migrate to the backend described by storage-new.yml
//	datastore migrate
//
//	# Check both configuration files
//	datastore validate
package main

func main() {
	Execute()
}
