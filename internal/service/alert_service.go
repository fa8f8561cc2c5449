package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/domain"
	"github.com/LuisSimiao/Riada-Care-System/internal/repository"

	"go.uber.org/zap"
)

// AlertService 告警创建/查询/确认服务
type AlertService struct {
	alerts      repository.AlertsRepository
	locations   map[string][]string
	alarmOffset time.Duration
	logger      *zap.Logger
}

// NewAlertService 创建告警服务
func NewAlertService(
	alerts repository.AlertsRepository,
	locations map[string][]string,
	alarmOffsetHours int,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		alerts:      alerts,
		locations:   locations,
		alarmOffset: time.Duration(alarmOffsetHours) * time.Hour,
		logger:      logger,
	}
}

// CreateAlertRequest 手工创建告警请求（事件类型允许自由文本）
type CreateAlertRequest struct {
	DeviceID     string  `json:"device_id"`
	Timestamp    string  `json:"timestamp"`
	EventType    string  `json:"event_type"`
	Severity     *string `json:"severity,omitempty"`
	Acknowledged *bool   `json:"acknowledged,omitempty"`
}

// CreateAlert 手工创建告警
// 时间戳按 UTC 解析并应用一次告警偏移（与接入侧同一策略），截断到分钟
func (s *AlertService) CreateAlert(ctx context.Context, req CreateAlertRequest) (string, error) {
	if req.DeviceID == "" || req.Timestamp == "" || req.EventType == "" {
		return "", fmt.Errorf("%w: device_id, timestamp and event_type are required", ErrMissingField)
	}

	ts, err := parseLocalTimestamp(req.Timestamp)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, req.Timestamp)
	}

	acknowledged := false
	if req.Acknowledged != nil {
		acknowledged = *req.Acknowledged
	}

	alert := &domain.Alert{
		DeviceID:     req.DeviceID,
		Timestamp:    ts.Add(s.alarmOffset).Truncate(time.Minute),
		EventType:    req.EventType,
		Severity:     req.Severity,
		Acknowledged: acknowledged,
	}
	if err := s.alerts.CreateAlert(ctx, alert); err != nil {
		return "", err
	}

	s.logger.Info("Alert created manually",
		zap.String("event_id", alert.EventID),
		zap.String("device_id", alert.DeviceID),
		zap.String("event_type", alert.EventType),
	)
	return alert.EventID, nil
}

// Unacknowledged 未确认告警列表
func (s *AlertService) Unacknowledged(ctx context.Context) ([]domain.Alert, error) {
	return s.alerts.ListUnacknowledged(ctx)
}

// Acknowledge 按 (日期, HH:MM, 地点) 批量确认，返回受影响行数
// 未知地点在访问存储之前失败；重复调用第二次返回 0（幂等）
func (s *AlertService) Acknowledge(ctx context.Context, date, timeOfDay, location string) (int64, error) {
	devices, ok := s.locations[location]
	if !ok || len(devices) == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return 0, err
	}

	affected, err := s.alerts.AcknowledgeWindow(ctx, devices, date, hour, minute)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Alerts acknowledged",
		zap.String("location", location),
		zap.String("date", date),
		zap.String("time", timeOfDay),
		zap.Int64("affected", affected),
	)
	return affected, nil
}

// parseTimeOfDay "HH:MM"（分钟精度，无秒）
func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return hour, minute, nil
}

// parseLocalTimestamp 接受 "2006-01-02 15:04:05" 或 RFC3339
func parseLocalTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
