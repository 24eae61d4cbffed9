// Package filedialect implements storage.Dialect over flat JSON and YAML
// documents, one file per table under <data_dir>/json or <data_dir>/yaml.
//
// A document maps targets to their columns:
//
//	uuid-123:
//	  coins: "50"
//	  name: Steve
//
// Absent values are not stored, so a record whose last value is removed
// disappears, and a table whose last record disappears has its file
// deleted. Files are rewritten atomically on every mutation.
package filedialect
