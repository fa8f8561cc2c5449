package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/config"
	"github.com/LuisSimiao/Riada-Care-System/internal/domain"
	"github.com/LuisSimiao/Riada-Care-System/internal/repository"

	"go.uber.org/zap"
)

// LivyBroker Livy 设备 MQTT 消息处理模块（遥测接入管道）
// topic 格式：alive/<rawDeviceID>/sensors/<CHANNEL> 或 alive/<rawDeviceID>/alarm/<kind>
// 单条消息处理失败只记录日志，绝不中断后续消息
type LivyBroker struct {
	deviceMap     map[string]string
	readings      repository.ReadingsRepository
	alerts        repository.AlertsRepository
	readingOffset time.Duration
	alarmOffset   time.Duration
	now           func() time.Time // 可注入，便于测试
	logger        *zap.Logger
}

// NewLivyBroker 创建 Livy Broker
func NewLivyBroker(
	cfg *config.Config,
	readings repository.ReadingsRepository,
	alerts repository.AlertsRepository,
	logger *zap.Logger,
) *LivyBroker {
	return &LivyBroker{
		deviceMap:     cfg.DeviceMap,
		readings:      readings,
		alerts:        alerts,
		readingOffset: time.Duration(cfg.ReadingUTCOffsetHours) * time.Hour,
		alarmOffset:   time.Duration(cfg.AlarmUTCOffsetHours) * time.Hour,
		now:           time.Now,
		logger:        logger,
	}
}

// Topics 订阅的通配主题
// 用通配符而不是逐设备枚举：映射表之外的设备也照常落库（fail-open）
func (b *LivyBroker) Topics() []string {
	return []string{"alive/+/sensors/+", "alive/+/alarm/+"}
}

// sensorChannels topic 最后一段 -> 读数通道
var sensorChannels = map[string]domain.Channel{
	"TEMPERATURE": domain.ChannelTemperature,
	"HUMIDITY":    domain.ChannelHumidity,
	"CO":          domain.ChannelCO,
	"CO2":         domain.ChannelCO2,
}

// HandleMessage 处理一条 MQTT 消息
// 返回的错误只用于上层记日志（存储失败等）；格式问题在这里直接丢弃
func (b *LivyBroker) HandleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		b.logger.Warn("Dropping message with unexpected topic shape", zap.String("topic", topic))
		return nil
	}

	deviceID := b.resolveDevice(parts[1])

	switch parts[2] {
	case "sensors":
		return b.handleSensor(deviceID, parts[3], payload)
	case "alarm":
		return b.handleAlarm(deviceID, parts[3], payload)
	default:
		b.logger.Debug("Ignoring message on unhandled category",
			zap.String("topic", topic),
			zap.String("category", parts[2]),
		)
		return nil
	}
}

// resolveDevice 设备身份解析
// 映射表查不到时按原始 ID 落库，未知设备的数据不会被静默丢掉
func (b *LivyBroker) resolveDevice(raw string) string {
	if mapped, ok := b.deviceMap[raw]; ok {
		return mapped
	}
	return raw
}

// handleSensor 读数消息：解析 -> 时间归一 -> 缺值回填 -> 单通道 upsert
func (b *LivyBroker) handleSensor(deviceID, sensor string, payload []byte) error {
	channel, ok := sensorChannels[sensor]
	if !ok {
		b.logger.Debug("Ignoring unknown sensor channel", zap.String("sensor", sensor))
		return nil
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		b.logger.Warn("Dropping malformed sensor payload",
			zap.String("device_id", deviceID),
			zap.String("channel", string(channel)),
			zap.Error(err),
		)
		return nil
	}

	ts := b.resolveTimestamp(body["timestamp"], b.readingOffset)

	value, hasValue := numericPayloadValue(body, string(channel), sensor)
	ctx := context.Background()
	if !hasValue {
		// 缺值回填：取该设备该通道最近一次非空值；从未观测过则跳过本次写入
		prev, found, err := b.readings.LatestChannelValue(ctx, deviceID, channel)
		if err != nil {
			return fmt.Errorf("failed to fetch previous %s value: %w", channel, err)
		}
		if !found {
			b.logger.Warn("Value missing in payload and no previous value found, skipping write",
				zap.String("device_id", deviceID),
				zap.String("channel", string(channel)),
			)
			return nil
		}
		value = prev
	}

	if err := b.readings.UpsertChannel(ctx, deviceID, ts, channel, value); err != nil {
		return fmt.Errorf("failed to upsert %s reading: %w", channel, err)
	}

	b.logger.Debug("Reading upserted",
		zap.String("device_id", deviceID),
		zap.String("channel", string(channel)),
		zap.Float64("value", value),
		zap.Time("timestamp", ts),
	)
	return nil
}

// handleAlarm 告警消息：跌倒默认未确认，其余默认已确认
func (b *LivyBroker) handleAlarm(deviceID, kind string, payload []byte) error {
	if !domain.KnownAlarmKind(kind) {
		b.logger.Warn("Dropping alarm with unknown kind", zap.String("kind", kind))
		return nil
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		b.logger.Warn("Dropping malformed alarm payload",
			zap.String("device_id", deviceID),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return nil
	}

	alert := &domain.Alert{
		DeviceID:     deviceID,
		Timestamp:    b.resolveTimestamp(body["timestamp"], b.alarmOffset),
		EventType:    kind,
		Acknowledged: domain.DefaultAcknowledged(kind),
	}

	if err := b.alerts.CreateAlert(context.Background(), alert); err != nil {
		return fmt.Errorf("failed to insert %s alert: %w", kind, err)
	}

	b.logger.Info("Alert recorded",
		zap.String("device_id", deviceID),
		zap.String("event_type", kind),
		zap.Time("timestamp", alert.Timestamp),
		zap.Bool("acknowledged", alert.Acknowledged),
	)
	return nil
}

// resolveTimestamp 时间归一
// 消息自带时间戳：按 UTC 解析，加一次本地偏移，截断到分钟；
// 没带：取当前时间截断到分钟（墙钟已经是本地时间，不再加偏移）
func (b *LivyBroker) resolveTimestamp(raw any, offset time.Duration) time.Time {
	if ts, ok := parsePayloadTimestamp(raw); ok {
		return ts.Add(offset).Truncate(time.Minute)
	}
	return b.now().Truncate(time.Minute)
}

// parsePayloadTimestamp 接受 RFC3339 / "2006-01-02 15:04:05" 字符串或 epoch 秒（毫秒自动识别）
func parsePayloadTimestamp(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return time.Time{}, false
		}
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return ts.UTC(), true
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			return ts.UTC(), true
		}
		return time.Time{}, false
	case float64:
		if v <= 0 {
			return time.Time{}, false
		}
		sec := int64(v)
		if sec > 1e12 { // 毫秒
			return time.UnixMilli(sec).UTC(), true
		}
		return time.Unix(sec, 0).UTC(), true
	}
	return time.Time{}, false
}

// numericPayloadValue 读数取值
// 设备固件版本不同，字段名有用列名的（temperature_c）也有用 topic 段的（TEMPERATURE），
// 按给定 key 顺序取第一个数值字段，最后兜底通用 value 字段
func numericPayloadValue(body map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := body[key].(float64); ok {
			return v, true
		}
	}
	if v, ok := body["value"].(float64); ok {
		return v, true
	}
	return 0, false
}
