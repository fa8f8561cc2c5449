package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/codec"
	"github.com/LuisSimiao/Riada-Care-System/internal/domain"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresReadingsRepository 环境读数 Repository 实现
// codec 边界在这里：写入前 Encode，读出后 Decode，上层只看到明文数值
type PostgresReadingsRepository struct {
	db     *sql.DB
	codec  codec.Codec
	logger *zap.Logger
}

// NewPostgresReadingsRepository 创建环境读数 Repository
func NewPostgresReadingsRepository(db *sql.DB, c codec.Codec, logger *zap.Logger) *PostgresReadingsRepository {
	return &PostgresReadingsRepository{db: db, codec: c, logger: logger}
}

// 确保实现了接口
var _ ReadingsRepository = (*PostgresReadingsRepository)(nil)

// UpsertChannel 单通道 upsert
// ON CONFLICT 只更新目标通道列，保证同一分钟内其他通道的并发写不被覆盖；
// 这条语句是 (device_id, timestamp) 行唯一的写入点
func (r *PostgresReadingsRepository) UpsertChannel(ctx context.Context, deviceID string, ts time.Time, channel domain.Channel, value float64) error {
	if !channel.Valid() {
		return fmt.Errorf("unknown channel %q", channel)
	}

	col := string(channel)
	query := fmt.Sprintf(`
		INSERT INTO environment_readings (device_id, "timestamp", %s)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_id, "timestamp")
		DO UPDATE SET %s = EXCLUDED.%s`, col, col, col)

	stored := r.codec.Encode(strconv.FormatFloat(value, 'f', -1, 64))
	if _, err := r.db.ExecContext(ctx, query, deviceID, ts, stored); err != nil {
		return fmt.Errorf("failed to upsert %s reading: %w", col, err)
	}
	return nil
}

// LatestChannelValue 最近一次非空通道值
func (r *PostgresReadingsRepository) LatestChannelValue(ctx context.Context, deviceID string, channel domain.Channel) (float64, bool, error) {
	if !channel.Valid() {
		return 0, false, fmt.Errorf("unknown channel %q", channel)
	}

	col := string(channel)
	query := fmt.Sprintf(`
		SELECT %s FROM environment_readings
		WHERE device_id = $1 AND %s IS NOT NULL
		ORDER BY "timestamp" DESC
		LIMIT 1`, col, col)

	var stored string
	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&stored)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query latest %s value: %w", col, err)
	}

	v, err := strconv.ParseFloat(r.codec.Decode(stored), 64)
	if err != nil {
		return 0, false, fmt.Errorf("stored %s value is not numeric: %w", col, err)
	}
	return v, true, nil
}

// QueryByDate 某天全部读数
func (r *PostgresReadingsRepository) QueryByDate(ctx context.Context, deviceIDs []string, date string) ([]domain.Reading, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, "timestamp", temperature_c, humidity_percent, co_ppm, co2_ppm
		FROM environment_readings
		WHERE device_id = ANY($1) AND "timestamp"::date = $2::date
		ORDER BY "timestamp" ASC`,
		pq.Array(deviceIDs), date)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var readings []domain.Reading
	for rows.Next() {
		var reading domain.Reading
		var temp, hum, co, co2 sql.NullString
		if err := rows.Scan(&reading.DeviceID, &reading.Timestamp, &temp, &hum, &co, &co2); err != nil {
			return nil, fmt.Errorf("failed to scan reading row: %w", err)
		}
		reading.Temperature = r.decodeValue(temp, domain.ChannelTemperature)
		reading.Humidity = r.decodeValue(hum, domain.ChannelHumidity)
		reading.CO = r.decodeValue(co, domain.ChannelCO)
		reading.CO2 = r.decodeValue(co2, domain.ChannelCO2)
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reading rows: %w", err)
	}
	return readings, nil
}

// AvailableDates 有数据的日期列表（去重，降序）
func (r *PostgresReadingsRepository) AvailableDates(ctx context.Context, deviceIDs []string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT "timestamp"::date AS day
		FROM environment_readings
		WHERE device_id = ANY($1)
		ORDER BY day DESC`,
		pq.Array(deviceIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query available dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var day time.Time
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan date row: %w", err)
		}
		dates = append(dates, day.Format("2006-01-02"))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate date rows: %w", err)
	}
	return dates, nil
}

// decodeValue 解码并解析数值列；解析失败按空值处理（只告警，不让坏行中断查询）
func (r *PostgresReadingsRepository) decodeValue(v sql.NullString, channel domain.Channel) *float64 {
	if !v.Valid {
		return nil
	}
	f, err := strconv.ParseFloat(r.codec.Decode(v.String), 64)
	if err != nil {
		r.logger.Warn("Stored reading value is not numeric, treating as absent",
			zap.String("channel", string(channel)),
		)
		return nil
	}
	return &f
}
