package domain

import "time"

// 设备告警类型（MQTT topic 的最后一段；手工创建的告警可以是任意类型）
const (
	AlarmFall      = "fall"
	AlarmOutOfBed  = "oob"
	AlarmOutOfRoom = "oor"
	AlarmHelpCall  = "help_call"
)

// KnownAlarmKind 是否为设备上报的已知告警类型
func KnownAlarmKind(kind string) bool {
	switch kind {
	case AlarmFall, AlarmOutOfBed, AlarmOutOfRoom, AlarmHelpCall:
		return true
	}
	return false
}

// DefaultAcknowledged 告警默认确认状态
// 只有跌倒告警需要人工签收，其余类型创建时即视为已确认
func DefaultAcknowledged(kind string) bool {
	return kind != AlarmFall
}

// Alert 告警事件领域模型（对应 alerts 表）
// 告警只插入不更新，唯一的变更是 Acknowledgment Matcher 把 acknowledged 翻为 true；
// 同一设备同一分钟允许多条告警
type Alert struct {
	EventID      string    `json:"event_id"`
	DeviceID     string    `json:"device_id"`
	Timestamp    time.Time `json:"timestamp"` // 本地时间（naive），分钟精度
	EventType    string    `json:"event_type"`
	Severity     *string   `json:"severity,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
}
