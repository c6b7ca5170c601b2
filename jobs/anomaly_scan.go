package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffhub-hr/staffhub/internal/observability"
)

// AnomalyScanJob inspects the audit trail for failed-login bursts. A
// source address exceeding the threshold inside the window is reported
// through the log and counted so operators can follow up.
type AnomalyScanJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *observability.Metrics
	clock   func() time.Time
}

// NewAnomalyScanJob initialises the anomaly scan handler.
func NewAnomalyScanJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *AnomalyScanJob {
	return &AnomalyScanJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type loginAnomaly struct {
	IP       string
	Failures int
	Accounts int
}

// Handle executes the failed-login scan.
func (j *AnomalyScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("anomaly scan: handler not configured")
	}
	var payload AnomalyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowHours <= 0 {
		payload.WindowHours = 24
	}
	if payload.Threshold <= 0 {
		payload.Threshold = 20
	}

	start := j.clock()
	logger := j.Logger.With(
		slog.Int("window_hours", payload.WindowHours),
		slog.Int("threshold", payload.Threshold),
	)
	logger.Info("starting failed-login scan")

	anomalies, err := j.scan(ctx, payload, start)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, a := range anomalies {
		j.Metrics.RecordAnomaly()
		logger.Warn("failed-login burst detected",
			slog.String("ip", a.IP),
			slog.Int("failures", a.Failures),
			slog.Int("accounts", a.Accounts),
		)
	}

	logger.Info("completed failed-login scan",
		slog.Int("anomalies", len(anomalies)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *AnomalyScanJob) scan(ctx context.Context, payload AnomalyScanPayload, now time.Time) ([]loginAnomaly, error) {
	if j.Pool == nil {
		return nil, errors.New("anomaly scan: pool not configured")
	}
	from := now.Add(-time.Duration(payload.WindowHours) * time.Hour)
	rows, err := j.Pool.Query(ctx, `
		SELECT ip, COUNT(*), COUNT(DISTINCT resource_id)
		FROM audit_logs
		WHERE action = 'USER_LOGIN_FAILED' AND occurred_at >= $1 AND ip <> ''
		GROUP BY ip
		HAVING COUNT(*) >= $2
		ORDER BY COUNT(*) DESC`, from, payload.Threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []loginAnomaly
	for rows.Next() {
		var a loginAnomaly
		if err := rows.Scan(&a.IP, &a.Failures, &a.Accounts); err != nil {
			return nil, err
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}
