package main

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"002_audit_ledger.up.sql": {Data: []byte("CREATE TABLE audit_ledger (idx int)")},
		"001_threats.up.sql":      {Data: []byte("CREATE TABLE threats (id text)")},
		"001_threats.down.sql":    {Data: []byte("DROP TABLE threats")},
		"README.md":               {Data: []byte("ignored")},
	}
}

func TestVersionFromFile(t *testing.T) {
	v, err := versionFromFile("002_audit_ledger.up.sql")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = versionFromFile("init.sql")
	assert.Error(t, err)
	_, err = versionFromFile("abc_init.sql")
	assert.Error(t, err)
}

func TestPending(t *testing.T) {
	m := &migrator{files: testFiles()}
	list, err := m.pending()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "001_threats.up.sql", list[0].name)
	assert.Equal(t, "002_audit_ledger.up.sql", list[1].name)

	files := testFiles()
	files["001_other.up.sql"] = &fstest.MapFile{Data: []byte("SELECT 1")}
	_, err = (&migrator{files: files}).pending()
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestUp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	// 001 already applied.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	// 002 pending.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).WithArgs(int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE audit_ledger (idx int)")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE schema_migrations SET dirty = false")).WithArgs(int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	var out bytes.Buffer
	m := &migrator{db: mock, files: testFiles(), out: &out}
	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Contains(t, out.String(), "skip  001_threats.up.sql")
	assert.Contains(t, out.String(), "apply 002_audit_ledger.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUp_applyFailureLeavesDirty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("syntax error")
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).WithArgs(int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE threats (id text)")).
		WillReturnError(boom)

	m := &migrator{db: mock, files: testFiles(), out: &bytes.Buffer{}}
	applied, err := m.Up(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}
