package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/datastore/pkg/config"
	"mercator-hq/datastore/pkg/storage"
	"mercator-hq/datastore/pkg/storage/storagetest"
)

type fixture struct {
	dir      string
	files    Files
	oldMem   *storagetest.Memory
	newMem   *storagetest.Memory
	registry *storage.Registry
	schema   storage.Schema
	current  *storage.Manager
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// newFixture sets up storage.yml for oldYAML and storage-new.yml for
// newYAML, with in-memory backends behind every method.
func newFixture(t *testing.T, oldMethod storage.Method, oldYAML string, newMethod storage.Method, newYAML string) *fixture {
	t.Helper()

	f := &fixture{
		dir:    t.TempDir(),
		oldMem: storagetest.NewMemory(oldMethod),
		newMem: storagetest.NewMemory(newMethod),
		schema: storage.NewSchema(map[string][]string{"players": {"coins"}}),
	}
	f.files = FilesFor(filepath.Join(f.dir, config.DefaultStorageFile))

	f.registry = storage.NewRegistry()
	f.registry.Register(oldMethod, f.oldMem.Factory())
	f.registry.Register(newMethod, f.newMem.Factory())

	writeFile(t, f.files.Current, oldYAML)
	if newYAML != "" {
		writeFile(t, f.files.New, newYAML)
	}

	cfg, err := config.LoadStorageConfig(f.files.Current, "test")
	require.NoError(t, err)

	f.current, err = storage.NewManager(context.Background(), cfg, f.schema, storage.WithRegistry(f.registry))
	require.NoError(t, err)

	return f
}

func (f *fixture) coordinator() *Coordinator {
	return NewCoordinator(Options{
		StoragePath: f.files.Current,
		PluginName:  "test",
		Schema:      f.schema,
		Registry:    f.registry,
	})
}

func value(t *testing.T, mem *storagetest.Memory, table, target, column string) storage.Value {
	t.Helper()
	v, err := mem.GetValue(context.Background(), table, target, column)
	require.NoError(t, err)
	return v
}

func TestMigrate_CopiesEveryTable(t *testing.T) {
	f := newFixture(t,
		storage.MethodSQLite, "method: sqlite\n",
		storage.MethodYAML, "method: yaml\n")

	f.oldMem.Put("players", "uuid-123", map[string]string{"coins": "75", "name": "Steve"})
	f.oldMem.Put("players", "uuid-456", map[string]string{"coins": "10"})
	f.oldMem.Put("guilds", "g1", map[string]string{"owner": "uuid-123"})

	coord := f.coordinator()
	require.True(t, coord.Pending())

	next, res, err := coord.Migrate(context.Background(), f.current)
	require.NoError(t, err)

	assert.Equal(t, storage.MethodYAML, next.Method())
	assert.Equal(t, storage.MethodSQLite, res.From)
	assert.Equal(t, storage.MethodYAML, res.To)
	assert.Equal(t, 3, res.Migrated)
	assert.Zero(t, res.Failed)
	assert.Equal(t, []string{"guilds", "players"}, res.Tables)

	assert.Equal(t, storage.Some("75"), value(t, f.newMem, "players", "uuid-123", "coins"))
	assert.Equal(t, storage.Some("Steve"), value(t, f.newMem, "players", "uuid-123", "name"))
	assert.Equal(t, storage.Some("10"), value(t, f.newMem, "players", "uuid-456", "coins"))
	assert.Equal(t, storage.Some("uuid-123"), value(t, f.newMem, "guilds", "g1", "owner"))
	assert.Contains(t, f.newMem.Columns("guilds"), "owner")

	assert.True(t, f.oldMem.Closed())

	assert.Equal(t, "method: yaml\n", readFile(t, f.files.Current))
	assert.Equal(t, "method: sqlite\n", readFile(t, f.files.Old))
	assert.NoFileExists(t, f.files.New)
	assert.NoFileExists(t, f.files.Journal)
	assert.False(t, coord.Pending())
}

func TestMigrate_RecordFailureDoesNotAbort(t *testing.T) {
	f := newFixture(t,
		storage.MethodSQLite, "method: sqlite\n",
		storage.MethodJSON, "method: json\n")

	for _, target := range []string{"r1", "r2", "r3"} {
		f.oldMem.Put("players", target, map[string]string{"coins": target})
	}

	boom := errors.New("value too long")
	f.newMem.FailSetValues(func(_, target string, _ storage.Record) error {
		if target == "r2" {
			return boom
		}
		return nil
	})

	next, res, err := f.coordinator().Migrate(context.Background(), f.current)
	require.NoError(t, err)
	assert.Equal(t, storage.MethodJSON, next.Method())

	assert.Equal(t, 2, res.Migrated)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.RecordErrors, 1)

	var recErr *storage.RecordError
	require.ErrorAs(t, res.RecordErrors[0], &recErr)
	assert.Equal(t, "players", recErr.Table)
	assert.Equal(t, "r2", recErr.Target)
	assert.Equal(t, map[string]string{"coins": "r2"}, recErr.Values)
	assert.ErrorIs(t, recErr, boom)

	assert.Equal(t, storage.Some("r1"), value(t, f.newMem, "players", "r1", "coins"))
	assert.Equal(t, storage.Some("r3"), value(t, f.newMem, "players", "r3", "coins"))
	assert.False(t, value(t, f.newMem, "players", "r2", "coins").Valid)
}

func TestMigrate_StripsRemotePrefix(t *testing.T) {
	f := newFixture(t,
		storage.MethodMySQL, "method: mysql\nremote_connection:\n  host: db\n  table_prefix: srv_\n",
		storage.MethodPostgreSQL, "method: postgresql\nremote_connection:\n  host: pg\n  table_prefix: new_\n")

	f.oldMem.Put("srv_players", "p1", map[string]string{"coins": "5"})
	f.oldMem.Put("other_players", "p1", map[string]string{"coins": "9"})

	next, res, err := f.coordinator().Migrate(context.Background(), f.current)
	require.NoError(t, err)
	assert.Equal(t, storage.MethodPostgreSQL, next.Method())
	assert.Equal(t, 1, res.Migrated)

	assert.Equal(t, storage.Some("5"), value(t, f.newMem, "new_players", "p1", "coins"))

	tables, err := f.newMem.Tables(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, tables, "new_other_players")
}

func TestMigrate_SkipsTablesWithoutTarget(t *testing.T) {
	f := newFixture(t,
		storage.MethodSQLite, "method: sqlite\n",
		storage.MethodYAML, "method: yaml\n")

	f.oldMem.Put("players", "p1", map[string]string{"coins": "1"})
	require.NoError(t, f.oldMem.CreateTable(context.Background(), "legacy"))
	f.oldMem.FailGetAllValues(func(table string) error {
		if table == "legacy" {
			return storage.ErrNoTargetColumn
		}
		return nil
	})

	_, res, err := f.coordinator().Migrate(context.Background(), f.current)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy"}, res.Skipped)
	assert.Equal(t, 1, res.Migrated)
}

func TestMigrate_EmptySourceStillRotates(t *testing.T) {
	f := newFixture(t,
		storage.MethodSQLite, "method: sqlite\n",
		storage.MethodYAML, "method: yaml\n")

	next, res, err := f.coordinator().Migrate(context.Background(), f.current)
	require.NoError(t, err)
	assert.Equal(t, storage.MethodYAML, next.Method())
	assert.Zero(t, res.Migrated)
	assert.Equal(t, "method: yaml\n", readFile(t, f.files.Current))
}

func TestMigrate_ProvisionFailureKeepsCurrent(t *testing.T) {
	f := newFixture(t,
		storage.MethodSQLite, "method: sqlite\n",
		storage.MethodYAML, "method: yaml\n")

	refused := errors.New("connection refused")
	f.registry.Register(storage.MethodYAML, func(context.Context, storage.FactoryOptions) (storage.Dialect, error) {
		return nil, refused
	})

	f.oldMem.Put("players", "p1", map[string]string{"coins": "1"})

	next, _, err := f.coordinator().Migrate(context.Background(), f.current)
	require.Error(t, err)
	assert.ErrorIs(t, err, refused)
	assert.Same(t, f.current, next)
	assert.False(t, f.oldMem.Closed())

	assert.Equal(t, "method: sqlite\n", readFile(t, f.files.Current))
	assert.FileExists(t, f.files.New)
	assert.NoFileExists(t, f.files.Old)
}

func TestMigrate_InvalidNewFileKeepsCurrent(t *testing.T) {
	f := newFixture(t,
		storage.MethodSQLite, "method: sqlite\n",
		storage.MethodYAML, "method: [yaml\n")

	next, _, err := f.coordinator().Migrate(context.Background(), f.current)
	require.Error(t, err)
	assert.Same(t, f.current, next)
}

func TestMigrate_ReplacesPreviousBackup(t *testing.T) {
	f := newFixture(t,
		storage.MethodSQLite, "method: sqlite\n",
		storage.MethodYAML, "method: yaml\n")
	writeFile(t, f.files.Old, "method: json\n")

	_, _, err := f.coordinator().Migrate(context.Background(), f.current)
	require.NoError(t, err)
	assert.Equal(t, "method: sqlite\n", readFile(t, f.files.Old))
}

func TestPending(t *testing.T) {
	f := newFixture(t, storage.MethodSQLite, "method: sqlite\n", storage.MethodYAML, "")
	assert.False(t, f.coordinator().Pending())
}

type recordingProgress struct {
	total    int64
	updates  []int64
	finished bool
}

func (p *recordingProgress) Start(total int64)    { p.total = total }
func (p *recordingProgress) Update(current int64) { p.updates = append(p.updates, current) }
func (p *recordingProgress) Finish()              { p.finished = true }

func TestMigrate_ReportsProgress(t *testing.T) {
	f := newFixture(t,
		storage.MethodSQLite, "method: sqlite\n",
		storage.MethodYAML, "method: yaml\n")

	f.oldMem.Put("players", "uuid-123", map[string]string{"coins": "75"})
	f.oldMem.Put("players", "uuid-456", map[string]string{"coins": "10"})

	progress := &recordingProgress{}
	coord := NewCoordinator(Options{
		StoragePath: f.files.Current,
		PluginName:  "test",
		Schema:      f.schema,
		Registry:    f.registry,
		Progress:    progress,
	})

	_, _, err := coord.Migrate(context.Background(), f.current)
	require.NoError(t, err)

	assert.Equal(t, int64(2), progress.total)
	assert.Equal(t, []int64{1, 2}, progress.updates)
	assert.True(t, progress.finished)
}
