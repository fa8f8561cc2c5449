package repository

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/codec"
	"github.com/LuisSimiao/Riada-Care-System/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReadingsRepo(t *testing.T) (*PostgresReadingsRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresReadingsRepository(db, codec.Identity{}, zap.NewNop()), mock
}

func TestUpsertChannelWritesSingleColumn(t *testing.T) {
	repo, mock := newReadingsRepo(t)
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO environment_readings \(device_id, "timestamp", temperature_c\)`).
		WithArgs("Hillcrest-1", ts, "21.5").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertChannel(context.Background(), "Hillcrest-1", ts, domain.ChannelTemperature, 21.5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertChannelRejectsUnknownChannel(t *testing.T) {
	repo, mock := newReadingsRepo(t)

	err := repo.UpsertChannel(context.Background(), "Hillcrest-1", time.Now(), domain.Channel("pressure"), 1)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestChannelValue(t *testing.T) {
	repo, mock := newReadingsRepo(t)

	mock.ExpectQuery(`SELECT co2_ppm FROM environment_readings`).
		WithArgs("Hillcrest-2").
		WillReturnRows(sqlmock.NewRows([]string{"co2_ppm"}).AddRow("612"))

	v, found, err := repo.LatestChannelValue(context.Background(), "Hillcrest-2", domain.ChannelCO2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 612.0, v)
}

func TestLatestChannelValueNoHistory(t *testing.T) {
	repo, mock := newReadingsRepo(t)

	mock.ExpectQuery(`SELECT humidity_percent FROM environment_readings`).
		WithArgs("Hillcrest-1").
		WillReturnRows(sqlmock.NewRows([]string{"humidity_percent"}))

	_, found, err := repo.LatestChannelValue(context.Background(), "Hillcrest-1", domain.ChannelHumidity)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueryByDate(t *testing.T) {
	repo, mock := newReadingsRepo(t)
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"device_id", "timestamp", "temperature_c", "humidity_percent", "co_ppm", "co2_ppm"}).
		AddRow("Hillcrest-1", ts, "21.5", "48", nil, "612").
		AddRow("Hillcrest-1", ts.Add(time.Minute), "garbage", nil, "0", nil)

	mock.ExpectQuery(`SELECT device_id, "timestamp", temperature_c, humidity_percent, co_ppm, co2_ppm`).
		WithArgs(sqlmock.AnyArg(), "2026-08-30").
		WillReturnRows(rows)

	readings, err := repo.QueryByDate(context.Background(), []string{"Hillcrest-1"}, "2026-08-30")
	require.NoError(t, err)
	require.Len(t, readings, 2)

	assert.Equal(t, 21.5, *readings[0].Temperature)
	assert.Equal(t, 48.0, *readings[0].Humidity)
	assert.Nil(t, readings[0].CO)
	assert.Equal(t, 612.0, *readings[0].CO2)

	// 坏值按空值处理，不让一行脏数据让整个查询失败
	assert.Nil(t, readings[1].Temperature)
	assert.Equal(t, 0.0, *readings[1].CO)
}

func TestAvailableDates(t *testing.T) {
	repo, mock := newReadingsRepo(t)

	rows := sqlmock.NewRows([]string{"day"}).
		AddRow(time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC))

	mock.ExpectQuery(`SELECT DISTINCT "timestamp"::date AS day`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	dates, err := repo.AvailableDates(context.Background(), []string{"Hillcrest-1", "Hillcrest-2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-08-30", "2026-08-29"}, dates)
}

func TestUpsertChannelEncodesAtRest(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	aes, err := codec.NewAES(make([]byte, 32))
	require.NoError(t, err)
	repo := NewPostgresReadingsRepository(db, aes, zap.NewNop())
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	var stored string
	mock.ExpectExec(`INSERT INTO environment_readings`).
		WithArgs("Hillcrest-1", ts, storedCapture{&stored}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertChannel(context.Background(), "Hillcrest-1", ts, domain.ChannelTemperature, 21.5))
	assert.NotEqual(t, "21.5", stored)
	assert.Equal(t, "21.5", aes.Decode(stored))
}

func newAESReadingsRepo(t *testing.T) (*PostgresReadingsRepository, *codec.AES, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	aes, err := codec.NewAES(make([]byte, 32))
	require.NoError(t, err)
	return NewPostgresReadingsRepository(db, aes, zap.NewNop()), aes, mock
}

func TestLatestChannelValueDecodesAES(t *testing.T) {
	repo, aes, mock := newAESReadingsRepo(t)

	// 回填读的是密文列，必须解出明文数值（不能把密文当值二次入库）
	mock.ExpectQuery(`SELECT temperature_c FROM environment_readings`).
		WithArgs("Hillcrest-1").
		WillReturnRows(sqlmock.NewRows([]string{"temperature_c"}).AddRow(aes.Encode("21.5")))

	v, found, err := repo.LatestChannelValue(context.Background(), "Hillcrest-1", domain.ChannelTemperature)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 21.5, v)
}

func TestQueryByDateDecodesAES(t *testing.T) {
	repo, aes, mock := newAESReadingsRepo(t)
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)

	// 同一行混着密文和历史明文（passthrough），都要解出数值
	rows := sqlmock.NewRows([]string{"device_id", "timestamp", "temperature_c", "humidity_percent", "co_ppm", "co2_ppm"}).
		AddRow("Hillcrest-1", ts, aes.Encode("21.5"), "48", aes.Encode("0"), nil)

	mock.ExpectQuery(`SELECT device_id, "timestamp", temperature_c, humidity_percent, co_ppm, co2_ppm`).
		WithArgs(sqlmock.AnyArg(), "2026-08-30").
		WillReturnRows(rows)

	readings, err := repo.QueryByDate(context.Background(), []string{"Hillcrest-1"}, "2026-08-30")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 21.5, *readings[0].Temperature)
	assert.Equal(t, 48.0, *readings[0].Humidity)
	assert.Equal(t, 0.0, *readings[0].CO)
	assert.Nil(t, readings[0].CO2)
}

// storedCapture 捕获传给 driver 的参数值
type storedCapture struct{ dst *string }

func (c storedCapture) Match(v driver.Value) bool {
	s, ok := v.(string)
	if ok {
		*c.dst = s
	}
	return ok
}
