package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LuisSimiao/Riada-Care-System/internal/codec"
	"github.com/LuisSimiao/Riada-Care-System/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresAlertsRepository 告警事件 Repository 实现
// event_type 经过 codec 编码落库；device_id 和 timestamp 保持明文（查询条件需要）
type PostgresAlertsRepository struct {
	db     *sql.DB
	codec  codec.Codec
	logger *zap.Logger
}

// NewPostgresAlertsRepository 创建告警 Repository
func NewPostgresAlertsRepository(db *sql.DB, c codec.Codec, logger *zap.Logger) *PostgresAlertsRepository {
	return &PostgresAlertsRepository{db: db, codec: c, logger: logger}
}

// 确保实现了接口
var _ AlertsRepository = (*PostgresAlertsRepository)(nil)

// CreateAlert 创建告警
func (r *PostgresAlertsRepository) CreateAlert(ctx context.Context, alert *domain.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.DeviceID == "" || alert.EventType == "" {
		return fmt.Errorf("device_id and event_type are required")
	}
	if alert.EventID == "" {
		alert.EventID = uuid.New().String()
	}

	var severity sql.NullString
	if alert.Severity != nil {
		severity = sql.NullString{String: *alert.Severity, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (event_id, device_id, "timestamp", event_type, severity, acknowledged)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		alert.EventID, alert.DeviceID, alert.Timestamp,
		r.codec.Encode(alert.EventType), severity, alert.Acknowledged)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// QueryByDate 某天全部告警
func (r *PostgresAlertsRepository) QueryByDate(ctx context.Context, deviceIDs []string, date string) ([]domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, device_id, "timestamp", event_type, severity, acknowledged
		FROM alerts
		WHERE device_id = ANY($1) AND "timestamp"::date = $2::date
		ORDER BY "timestamp" ASC`,
		pq.Array(deviceIDs), date)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return r.scanAlerts(rows)
}

// ListUnacknowledged 未确认告警列表
func (r *PostgresAlertsRepository) ListUnacknowledged(ctx context.Context) ([]domain.Alert, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, device_id, "timestamp", event_type, severity, acknowledged
		FROM alerts
		WHERE acknowledged = FALSE
		ORDER BY "timestamp" DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unacknowledged alerts: %w", err)
	}
	defer rows.Close()

	return r.scanAlerts(rows)
}

// AcknowledgeWindow 按时间窗批量确认
// acknowledged=FALSE 谓词既是过滤条件也是幂等保护：两次相同调用合计每行只确认一次
func (r *PostgresAlertsRepository) AcknowledgeWindow(ctx context.Context, deviceIDs []string, date string, hour, minute int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE alerts
		SET acknowledged = TRUE
		WHERE device_id = ANY($1)
		  AND "timestamp"::date = $2::date
		  AND EXTRACT(HOUR FROM "timestamp") = $3
		  AND EXTRACT(MINUTE FROM "timestamp") = $4
		  AND acknowledged = FALSE`,
		pq.Array(deviceIDs), date, hour, minute)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge alerts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

func (r *PostgresAlertsRepository) scanAlerts(rows *sql.Rows) ([]domain.Alert, error) {
	var alerts []domain.Alert
	for rows.Next() {
		var alert domain.Alert
		var eventType string
		var severity sql.NullString
		if err := rows.Scan(&alert.EventID, &alert.DeviceID, &alert.Timestamp, &eventType, &severity, &alert.Acknowledged); err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alert.EventType = r.codec.Decode(eventType)
		if severity.Valid {
			alert.Severity = &severity.String
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rows: %w", err)
	}
	return alerts, nil
}
