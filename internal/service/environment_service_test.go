package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubReadings struct {
	readings []domain.Reading
	dates    []string
	latest   map[domain.Channel]float64
	calls    int
}

func (s *stubReadings) UpsertChannel(context.Context, string, time.Time, domain.Channel, float64) error {
	s.calls++
	return nil
}

func (s *stubReadings) LatestChannelValue(_ context.Context, _ string, channel domain.Channel) (float64, bool, error) {
	s.calls++
	v, ok := s.latest[channel]
	return v, ok, nil
}

func (s *stubReadings) QueryByDate(context.Context, []string, string) ([]domain.Reading, error) {
	s.calls++
	return s.readings, nil
}

func (s *stubReadings) AvailableDates(context.Context, []string) ([]string, error) {
	s.calls++
	return s.dates, nil
}

type stubAlerts struct {
	alerts   []domain.Alert
	affected int64
	calls    int
}

func (s *stubAlerts) CreateAlert(_ context.Context, alert *domain.Alert) error {
	s.calls++
	if alert.EventID == "" {
		alert.EventID = "generated"
	}
	s.alerts = append(s.alerts, *alert)
	return nil
}

func (s *stubAlerts) QueryByDate(context.Context, []string, string) ([]domain.Alert, error) {
	s.calls++
	return s.alerts, nil
}

func (s *stubAlerts) ListUnacknowledged(context.Context) ([]domain.Alert, error) {
	s.calls++
	return s.alerts, nil
}

func (s *stubAlerts) AcknowledgeWindow(context.Context, []string, string, int, int) (int64, error) {
	s.calls++
	return s.affected, nil
}

func ptr(v float64) *float64 { return &v }

func reading(deviceID string, hour, minute int, set func(*domain.Reading)) domain.Reading {
	r := domain.Reading{
		DeviceID:  deviceID,
		Timestamp: time.Date(2026, 8, 30, hour, minute, 0, 0, time.UTC),
	}
	set(&r)
	return r
}

var testGroups = map[string][]string{
	"CARE-A": {"Hillcrest-1", "Hillcrest-2"},
}

func newEnvService(readings *stubReadings, alerts *stubAlerts) *EnvironmentService {
	return NewEnvironmentService(readings, alerts, testGroups, zap.NewNop())
}

func TestAggregateInvalidGroupBeforeStore(t *testing.T) {
	readings := &stubReadings{}
	alerts := &stubAlerts{}
	svc := newEnvService(readings, alerts)

	_, err := svc.Aggregate(context.Background(), "NOPE", "2026-08-30")
	assert.ErrorIs(t, err, ErrInvalidGroup)
	assert.Zero(t, readings.calls)
	assert.Zero(t, alerts.calls)

	_, err = svc.Aggregate(context.Background(), "CARE-A", "not-a-date")
	assert.ErrorIs(t, err, ErrInvalidDate)
	assert.Zero(t, readings.calls)
}

func TestAggregateBucketsAndZeroExclusion(t *testing.T) {
	readings := &stubReadings{readings: []domain.Reading{
		// 10:00 属于 8am-2pm 时段（下标 1）
		reading("Hillcrest-1", 10, 0, func(r *domain.Reading) {
			r.Temperature = ptr(20)
			r.CO = ptr(0)
		}),
		reading("Hillcrest-1", 10, 5, func(r *domain.Reading) {
			r.Temperature = ptr(22)
			r.CO = ptr(4)
		}),
		// 温度 0 是传感器噪声，要被剔除
		reading("Hillcrest-1", 10, 10, func(r *domain.Reading) {
			r.Temperature = ptr(0)
		}),
	}}
	svc := newEnvService(readings, &stubAlerts{})

	agg, err := svc.Aggregate(context.Background(), "CARE-A", "2026-08-30")
	require.NoError(t, err)

	temps := agg.ChannelAverages["Hillcrest-1"][domain.ChannelTemperature]
	require.NotNil(t, temps[1])
	assert.Equal(t, 21.0, *temps[1], "zero temperature excluded from average")

	// CO 的 0 是有效读数要计入
	cos := agg.ChannelAverages["Hillcrest-1"][domain.ChannelCO]
	require.NotNil(t, cos[1])
	assert.Equal(t, 2.0, *cos[1])

	// 其余时段无样本为 null
	assert.Nil(t, temps[0])
	assert.Nil(t, temps[2])
	assert.Nil(t, temps[3])

	// 没有任何数据的分组成员也要出现在结果里
	assert.Contains(t, agg.ChannelAverages, "Hillcrest-2")
	assert.Equal(t, [4]string{"12am-8am", "8am-2pm", "2pm-8pm", "8pm-12am"}, agg.PeriodLabels)
}

func TestAggregateAlertTables(t *testing.T) {
	mkAlert := func(device, kind string, hour int) domain.Alert {
		return domain.Alert{
			DeviceID:  device,
			Timestamp: time.Date(2026, 8, 30, hour, 0, 0, 0, time.UTC),
			EventType: kind,
		}
	}
	alerts := &stubAlerts{alerts: []domain.Alert{
		mkAlert("Hillcrest-1", "fall", 9),
		mkAlert("Hillcrest-1", "fall", 10),
		mkAlert("Hillcrest-2", "help_call", 21),
		// 映射表之外的设备也要出现在表里
		mkAlert("Unknown-9", "fall", 3),
	}}
	svc := newEnvService(&stubReadings{}, alerts)

	agg, err := svc.Aggregate(context.Background(), "CARE-A", "2026-08-30")
	require.NoError(t, err)

	require.Len(t, agg.AlertTables, 2)
	assert.Equal(t, "fall", agg.AlertTables[0].EventType)
	assert.Equal(t, "help_call", agg.AlertTables[1].EventType)

	fall := agg.AlertTables[0]
	require.Len(t, fall.Rows, 3)
	// 分组成员保持配置顺序，额外设备排序后追加
	assert.Equal(t, "Hillcrest-1", fall.Rows[0].DeviceID)
	assert.Equal(t, "Hillcrest-2", fall.Rows[1].DeviceID)
	assert.Equal(t, "Unknown-9", fall.Rows[2].DeviceID)

	assert.Equal(t, 2, fall.Rows[0].Counts[1])
	assert.Equal(t, 2, fall.Rows[0].Total)
	assert.Equal(t, 1, fall.Rows[2].Counts[0])

	help := agg.AlertTables[1]
	assert.Equal(t, 1, help.Rows[1].Counts[3])
}

func TestAggregateDeterministic(t *testing.T) {
	alerts := &stubAlerts{alerts: []domain.Alert{
		{DeviceID: "Zeta", Timestamp: time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC), EventType: "fall"},
		{DeviceID: "Alpha", Timestamp: time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC), EventType: "fall"},
	}}
	svc := newEnvService(&stubReadings{}, alerts)

	first, err := svc.Aggregate(context.Background(), "CARE-A", "2026-08-30")
	require.NoError(t, err)
	second, err := svc.Aggregate(context.Background(), "CARE-A", "2026-08-30")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	// 额外设备按名称排序
	rows := first.AlertTables[0].Rows
	assert.Equal(t, "Alpha", rows[2].DeviceID)
	assert.Equal(t, "Zeta", rows[3].DeviceID)
}

func TestBucketCountsMarshalPlaceholder(t *testing.T) {
	raw, err := json.Marshal(BucketCounts{0, 3, 0, 1})
	require.NoError(t, err)
	assert.JSONEq(t, `["-",3,"-",1]`, string(raw))
}

func TestLatestReadings(t *testing.T) {
	readings := &stubReadings{latest: map[domain.Channel]float64{
		domain.ChannelTemperature: 21.5,
		domain.ChannelCO2:         612,
	}}
	svc := newEnvService(readings, &stubAlerts{})

	latest, err := svc.LatestReadings(context.Background(), "Hillcrest-1")
	require.NoError(t, err)
	assert.Equal(t, 21.5, *latest[domain.ChannelTemperature])
	assert.Equal(t, 612.0, *latest[domain.ChannelCO2])
	assert.Nil(t, latest[domain.ChannelHumidity])
	assert.Nil(t, latest[domain.ChannelCO])
}

func TestAvailableDatesValidatesGroup(t *testing.T) {
	readings := &stubReadings{dates: []string{"2026-08-30", "2026-08-29"}}
	svc := newEnvService(readings, &stubAlerts{})

	dates, err := svc.AvailableDates(context.Background(), "CARE-A")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-30", "2026-08-29"}, dates)

	_, err = svc.AvailableDates(context.Background(), "CARE-X")
	assert.ErrorIs(t, err, ErrInvalidGroup)
}

func TestBucketIndex(t *testing.T) {
	assert.Equal(t, 0, bucketIndex(0))
	assert.Equal(t, 0, bucketIndex(7))
	assert.Equal(t, 1, bucketIndex(8))
	assert.Equal(t, 1, bucketIndex(13))
	assert.Equal(t, 2, bucketIndex(14))
	assert.Equal(t, 2, bucketIndex(19))
	assert.Equal(t, 3, bucketIndex(20))
	assert.Equal(t, 3, bucketIndex(23))
}
