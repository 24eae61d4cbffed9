package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionError_Redacts(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewConnectionError(MethodPostgreSQL,
		"postgres://admin:hunter2@db:5432/game",
		map[string]string{"password": "hunter2", "sslmode": "disable"},
		cause,
	)

	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "postgresql")
	assert.Contains(t, err.Error(), "sslmode:disable")
	assert.Equal(t, "REDACTED", err.Properties["password"])
	assert.ErrorIs(t, err, cause)
}

func TestOperationError(t *testing.T) {
	err := &OperationError{
		Method:    MethodSQLite,
		Operation: OpGetValue,
		Table:     "players",
		Target:    "uuid-1",
		Column:    "coins",
		Cause:     ErrClosed,
	}

	assert.Equal(t, "storage error [method=sqlite, operation=get_value, table=players, target=uuid-1, column=coins]: storage backend is closed", err.Error())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSchemaError(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, `failed to create table "players": boom`, NewSchemaError("players", "", cause).Error())
	assert.Equal(t, `failed to create column "coins" in table "players": boom`, NewSchemaError("players", "coins", cause).Error())
	assert.ErrorIs(t, NewSchemaError("players", "coins", cause), cause)
}

func TestRecordAndCutoverErrors(t *testing.T) {
	cause := errors.New("disk full")

	rec := &RecordError{Table: "players", Target: "uuid-1", Values: map[string]string{"coins": "5"}, Cause: cause}
	assert.Contains(t, rec.Error(), "target=uuid-1")
	assert.Contains(t, rec.Error(), "coins:5")
	assert.ErrorIs(t, rec, cause)

	cut := &CutoverError{Step: "rename storage-new.yml", Cause: cause}
	assert.Contains(t, cut.Error(), "rename storage-new.yml")
	assert.ErrorIs(t, cut, cause)
}
