package repository

import (
	"context"

	"github.com/LuisSimiao/Riada-Care-System/internal/domain"
)

// AlertsRepository 告警事件 Repository 接口
type AlertsRepository interface {
	// 创建告警（只插入；同一设备同一分钟允许多条）
	CreateAlert(ctx context.Context, alert *domain.Alert) error

	// 某天全部告警（按 timestamp 升序）
	QueryByDate(ctx context.Context, deviceIDs []string, date string) ([]domain.Alert, error)

	// 未确认告警列表（按 timestamp 降序）
	ListUnacknowledged(ctx context.Context) ([]domain.Alert, error)

	// 按 (日期, 时, 分, 设备集合) 批量确认，只命中 acknowledged=false 的行
	// 返回受影响行数；重复调用天然幂等
	AcknowledgeWindow(ctx context.Context, deviceIDs []string, date string, hour, minute int) (int64, error)
}
