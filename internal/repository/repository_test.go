package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TokenPulse/internal/domain/models"
)

type fakeWriter struct {
	topic   string
	key     []byte
	value   interface{}
	headers map[string]string
	err     error
}

func (f *fakeWriter) PublishWithHeaders(_ context.Context, topic string, key []byte, value interface{}, headers map[string]string) error {
	f.topic, f.key, f.value, f.headers = topic, key, value, headers
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaOutcomeSinkWrite(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaOutcomeSink(w, "analysis.results")
	o := &models.Outcome{Status: models.StatusReady, RequestID: "r1"}

	require.NoError(t, sink.Write(context.Background(), o))
	assert.Equal(t, "analysis.results", w.topic)
	assert.Equal(t, []byte("r1"), w.key)
	assert.Same(t, o, w.value)
	assert.Equal(t, map[string]string{"request_id": "r1", "status": "analysis_ready"}, w.headers)

	w.err = errors.New("leader not available")
	assert.ErrorContains(t, sink.Write(context.Background(), o), "leader not available")
}

func TestCHOutcomeAuditRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	audit, err := NewCHOutcomeAudit(db, "analysis_outcomes", time.Second)
	require.NoError(t, err)

	published := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	o := &models.Outcome{
		Status:      models.StatusReady,
		RequestID:   "r1",
		PublishedAt: published,
		Report: &models.AnalysisReport{
			Tokens:          []string{"BTC", "ETH"},
			Recommendations: map[string]models.Recommendation{"BTC": models.Buy, "ETH": models.InsufficientData},
			Errors:          []models.StageError{{Stage: models.StageMarket, Token: "ETH"}},
		},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analysis_outcomes")).
		WithArgs("r1", "analysis_ready", "", uint8(0), "BTC,ETH",
			`{"BTC":"buy","ETH":"insufficient-data"}`, uint32(1), published).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, audit.Record(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHOutcomeAuditErrorOutcome(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	audit, err := NewCHOutcomeAudit(db, "", 0)
	require.NoError(t, err)

	o := models.NewErrorOutcome("r2", models.AggregationFailure(3, errors.New("503")))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analysis_outcomes")).
		WithArgs("r2", "analysis_error", models.KindAggregationFailure, uint8(1), "", "{}", uint32(0), sqlmock.AnyArg()).
		WillReturnError(errors.New("table missing"))

	assert.ErrorContains(t, audit.Record(context.Background(), o), "table missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCHOutcomeAuditRejectsBadTable(t *testing.T) {
	_, err := NewCHOutcomeAudit(nil, "x; DROP TABLE y", time.Second)
	assert.Error(t, err)
}

func TestCHOutcomeAuditSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	audit, err := NewCHOutcomeAudit(db, "tp.outcomes", time.Second)
	require.NoError(t, err)

	stmts := audit.Schema()
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS tp.outcomes")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS tp.outcomes")).WillReturnResult(sqlmock.NewResult(0, 0))
	for _, stmt := range stmts {
		_, err := db.ExecContext(context.Background(), stmt)
		require.NoError(t, err)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
