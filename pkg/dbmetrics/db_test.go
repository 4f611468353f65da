package dbmetrics

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCollector struct {
	mu         sync.Mutex
	operations []string
	errs       []error
}

func (c *recordingCollector) ObserveDBQuery(_, operation string, _ time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operations = append(c.operations, operation)
	c.errs = append(c.errs, err)
}

func (c *recordingCollector) SetDBPoolStats(string, sql.DBStats) {}

func TestDB_ObservesQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	collector := &recordingCollector{}
	wrapped := Wrap(db, collector, "test")

	mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM appointments").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a"))

	_, err = wrapped.ExecContext(context.Background(), "UPDATE appointments SET status = $1", "confirmed")
	require.NoError(t, err)

	rows, err := wrapped.QueryContext(context.Background(), "SELECT id FROM appointments")
	require.NoError(t, err)
	require.NoError(t, rows.Close())

	assert.Equal(t, []string{"update", "select"}, collector.operations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_TxCarriesMetricsAndContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	collector := &recordingCollector{}
	wrapped := Wrap(db, collector, "test")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO appointments").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := wrapped.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	ctx := WithTx(context.Background(), tx)
	assert.True(t, IsInTransaction(ctx))
	assert.Same(t, tx, GetExecutor(ctx, wrapped))

	_, err = GetExecutor(ctx, wrapped).ExecContext(ctx, "INSERT INTO appointments (id) VALUES ($1)", "a")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, []string{"insert"}, collector.operations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetExecutor_WithoutTransaction(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	wrapped := Wrap(db, nil, "test")
	ctx := context.Background()

	assert.False(t, IsInTransaction(ctx))
	assert.Same(t, wrapped, GetExecutor(ctx, wrapped))
}

func TestOperation(t *testing.T) {
	assert.Equal(t, "select", operation("  SELECT * FROM x"))
	assert.Equal(t, "insert", operation("INSERT INTO x"))
	assert.Equal(t, "unknown", operation(""))
}
