package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/domain"
	"github.com/LuisSimiao/Riada-Care-System/internal/repository"

	"go.uber.org/zap"
)

// Period 一天内的固定统计时段 [Start, End) 小时
type Period struct {
	Label string
	Start int
	End   int
}

// Periods 看板使用的四个固定时段
var Periods = [4]Period{
	{Label: "12am-8am", Start: 0, End: 8},
	{Label: "8am-2pm", Start: 8, End: 14},
	{Label: "2pm-8pm", Start: 14, End: 20},
	{Label: "8pm-12am", Start: 20, End: 24},
}

// bucketIndex 本地小时 -> 时段下标
func bucketIndex(hour int) int {
	switch {
	case hour < 8:
		return 0
	case hour < 14:
		return 1
	case hour < 20:
		return 2
	default:
		return 3
	}
}

// BucketValues 四个时段的平均值；无有效样本为 null（前端据此区分“无数据”和“值为 0”）
type BucketValues [4]*float64

// BucketCounts 四个时段的告警计数；空时段序列化为 "-" 占位而不是 0
type BucketCounts [4]int

func (c BucketCounts) MarshalJSON() ([]byte, error) {
	out := []byte{'['}
	for i, n := range c {
		if i > 0 {
			out = append(out, ',')
		}
		if n == 0 {
			out = append(out, '"', '-', '"')
		} else {
			out = append(out, []byte(fmt.Sprintf("%d", n))...)
		}
	}
	return append(out, ']'), nil
}

// AlertTableRow 单设备在一个告警类型下的分时段计数
type AlertTableRow struct {
	DeviceID string       `json:"device_id"`
	Counts   BucketCounts `json:"counts"`
	Total    int          `json:"total"`
}

// AlertTable 一个告警类型的统计表
type AlertTable struct {
	EventType string          `json:"event_type"`
	Rows      []AlertTableRow `json:"rows"`
}

// Aggregation 某分组某天的聚合结果（只读派生数据，不落库）
type Aggregation struct {
	Group           string                                    `json:"group"`
	Date            string                                    `json:"date"`
	PeriodLabels    [4]string                                 `json:"period_labels"`
	ChannelAverages map[string]map[domain.Channel]BucketValues `json:"channel_averages"` // device -> channel -> buckets
	AlertTables     []AlertTable                              `json:"alert_tables"`
}

// EnvironmentService 环境数据查询/聚合服务（只读，与接入侧并发安全）
type EnvironmentService struct {
	readings repository.ReadingsRepository
	alerts   repository.AlertsRepository
	groups   map[string][]string
	logger   *zap.Logger
}

// NewEnvironmentService 创建环境数据服务
func NewEnvironmentService(
	readings repository.ReadingsRepository,
	alerts repository.AlertsRepository,
	groups map[string][]string,
	logger *zap.Logger,
) *EnvironmentService {
	return &EnvironmentService{
		readings: readings,
		alerts:   alerts,
		groups:   groups,
		logger:   logger,
	}
}

// GroupDevices 分组 -> 设备列表；未知分组在访问存储之前报错
func (s *EnvironmentService) GroupDevices(group string) ([]string, error) {
	devices, ok := s.groups[group]
	if !ok || len(devices) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGroup, group)
	}
	return devices, nil
}

// AvailableDates 有数据的日期列表（去重，降序，可重复调用结果一致）
func (s *EnvironmentService) AvailableDates(ctx context.Context, group string) ([]string, error) {
	devices, err := s.GroupDevices(group)
	if err != nil {
		return nil, err
	}
	return s.readings.AvailableDates(ctx, devices)
}

// LatestReadings 设备最近一次非空读数（按通道）
func (s *EnvironmentService) LatestReadings(ctx context.Context, deviceID string) (map[domain.Channel]*float64, error) {
	result := make(map[domain.Channel]*float64, len(domain.Channels))
	for _, channel := range domain.Channels {
		v, ok, err := s.readings.LatestChannelValue(ctx, deviceID, channel)
		if err != nil {
			return nil, err
		}
		if ok {
			value := v
			result[channel] = &value
		} else {
			result[channel] = nil
		}
	}
	return result, nil
}

// Aggregate 某分组某天的四时段聚合
// 要么完整成功要么整体失败，不返回半填充结果；相同存储内容下输出确定
func (s *EnvironmentService) Aggregate(ctx context.Context, group, date string) (*Aggregation, error) {
	devices, err := s.GroupDevices(group)
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	readings, err := s.readings.QueryByDate(ctx, devices, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings for aggregation: %w", err)
	}
	alerts, err := s.alerts.QueryByDate(ctx, devices, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts for aggregation: %w", err)
	}

	// 输出设备集合 = 分组成员 ∪ 告警里出现的设备（容忍映射表之外的设备 ID）；
	// 没有任何数据的分组成员也要出现在结果里
	allDevices := unionDevices(devices, alerts)

	agg := &Aggregation{
		Group:           group,
		Date:            date,
		ChannelAverages: make(map[string]map[domain.Channel]BucketValues, len(allDevices)),
	}
	for i, p := range Periods {
		agg.PeriodLabels[i] = p.Label
	}

	for _, deviceID := range allDevices {
		agg.ChannelAverages[deviceID] = channelAverages(deviceID, readings)
	}
	agg.AlertTables = buildAlertTables(allDevices, alerts)

	return agg, nil
}

// channelAverages 单设备各通道的四时段平均
// CO 的 0 是有效读数要计入；其余通道的 0 和 NaN 视为传感器噪声剔除；
// 时段内无有效样本时平均值为 null 而不是 0
func channelAverages(deviceID string, readings []domain.Reading) map[domain.Channel]BucketValues {
	averages := make(map[domain.Channel]BucketValues, len(domain.Channels))
	for _, channel := range domain.Channels {
		var sums, counts [4]float64
		for _, reading := range readings {
			if reading.DeviceID != deviceID {
				continue
			}
			v := reading.Value(channel)
			if v == nil || math.IsNaN(*v) {
				continue
			}
			if *v == 0 && channel != domain.ChannelCO {
				continue
			}
			idx := bucketIndex(reading.Timestamp.Hour())
			sums[idx] += *v
			counts[idx]++
		}

		var buckets BucketValues
		for i := range buckets {
			if counts[i] > 0 {
				avg := sums[i] / counts[i]
				buckets[i] = &avg
			}
		}
		averages[channel] = buckets
	}
	return averages
}

// buildAlertTables 按告警类型分表，每表按设备分行、按时段计数
func buildAlertTables(devices []string, alerts []domain.Alert) []AlertTable {
	eventTypes := make([]string, 0)
	seen := make(map[string]bool)
	for _, alert := range alerts {
		if !seen[alert.EventType] {
			seen[alert.EventType] = true
			eventTypes = append(eventTypes, alert.EventType)
		}
	}
	sort.Strings(eventTypes)

	tables := make([]AlertTable, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		table := AlertTable{EventType: eventType, Rows: make([]AlertTableRow, 0, len(devices))}
		for _, deviceID := range devices {
			row := AlertTableRow{DeviceID: deviceID}
			for _, alert := range alerts {
				if alert.DeviceID != deviceID || alert.EventType != eventType {
					continue
				}
				row.Counts[bucketIndex(alert.Timestamp.Hour())]++
				row.Total++
			}
			table.Rows = append(table.Rows, row)
		}
		tables = append(tables, table)
	}
	return tables
}

// unionDevices 分组成员保持配置顺序，告警里新出现的设备排序后追加（保证输出确定）
func unionDevices(groupDevices []string, alerts []domain.Alert) []string {
	known := make(map[string]bool, len(groupDevices))
	for _, d := range groupDevices {
		known[d] = true
	}

	var extras []string
	for _, alert := range alerts {
		if !known[alert.DeviceID] {
			known[alert.DeviceID] = true
			extras = append(extras, alert.DeviceID)
		}
	}
	sort.Strings(extras)

	return append(append([]string{}, groupDevices...), extras...)
}
