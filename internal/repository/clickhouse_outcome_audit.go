package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"TokenPulse/internal/domain/models"
	domrepo "TokenPulse/internal/domain/repository"
	applogger "TokenPulse/pkg/logger"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// CHOutcomeAudit stores one metadata row per terminal outcome. Report bodies are never stored.
type CHOutcomeAudit struct {
	db      *sql.DB
	table   string
	timeout time.Duration
	l       *applogger.Logger
}

func NewCHOutcomeAudit(db *sql.DB, table string, timeout time.Duration) (*CHOutcomeAudit, error) {
	if table == "" {
		table = "analysis_outcomes"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid audit table name %q", table)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CHOutcomeAudit{db: db, table: table, timeout: timeout}, nil
}

// SetLogger injects a structured logger.
func (a *CHOutcomeAudit) SetLogger(l *applogger.Logger) { a.l = l }

// Schema returns the DDL for the audit table.
func (a *CHOutcomeAudit) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            request_id      String,
            status          LowCardinality(String),
            error_kind      LowCardinality(String),
            retryable       UInt8,
            tokens          String,
            recommendations String,
            error_count     UInt32,
            published_at    DateTime64(3, 'UTC')
        ) ENGINE = MergeTree
        ORDER BY (published_at, request_id)
    `, a.table)}
}

func (a *CHOutcomeAudit) Record(ctx context.Context, o *models.Outcome) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var (
		tokens   = o.Coins
		recs     = map[string]models.Recommendation{}
		errCount int
	)
	if o.Report != nil {
		tokens = o.Report.Tokens
		recs = o.Report.Recommendations
		errCount = len(o.Report.Errors)
	}
	recJSON, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	retryable := uint8(0)
	if o.IsRetryable() {
		retryable = 1
	}

	q := fmt.Sprintf(`INSERT INTO %s (request_id, status, error_kind, retryable, tokens, recommendations, error_count, published_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, a.table)
	_, err = a.db.ExecContext(ctx, q,
		o.RequestID, string(o.Status), o.ErrorKind, retryable,
		strings.Join(tokens, ","), string(recJSON), uint32(errCount), o.PublishedAt,
	)
	if err != nil {
		if a.l != nil {
			a.l.Error("clickhouse audit insert error",
				applogger.String("table", a.table),
				applogger.String("request_id", o.RequestID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

func (a *CHOutcomeAudit) Health(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

var _ domrepo.OutcomeAudit = (*CHOutcomeAudit)(nil)
