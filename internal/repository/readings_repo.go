package repository

import (
	"context"
	"time"

	"github.com/LuisSimiao/Riada-Care-System/internal/domain"
)

// ReadingsRepository 环境读数 Repository 接口
// 时间戳统一为本地时间（naive），分钟精度；date 参数格式 YYYY-MM-DD
type ReadingsRepository interface {
	// 单通道 upsert：只写目标通道列，不覆盖同一 (device_id, timestamp) 行的其他通道
	UpsertChannel(ctx context.Context, deviceID string, ts time.Time, channel domain.Channel, value float64) error

	// 最近一次非空通道值（解码后的明文数值；用于缺值回填和最新读数）
	// 无历史值时返回 ok=false，不算错误
	LatestChannelValue(ctx context.Context, deviceID string, channel domain.Channel) (value float64, ok bool, err error)

	// 某天全部读数（按 timestamp 升序）
	QueryByDate(ctx context.Context, deviceIDs []string, date string) ([]domain.Reading, error)

	// 有数据的日期列表（去重，降序）
	AvailableDates(ctx context.Context, deviceIDs []string) ([]string, error)
}
