package domain

import "time"

// Channel 环境传感器通道（同时是 environment_readings 表的列名）
type Channel string

const (
	ChannelTemperature Channel = "temperature_c"
	ChannelHumidity    Channel = "humidity_percent"
	ChannelCO          Channel = "co_ppm"
	ChannelCO2         Channel = "co2_ppm"
)

// Channels 全部通道，固定顺序（聚合输出和导出按此顺序）
var Channels = []Channel{ChannelTemperature, ChannelHumidity, ChannelCO, ChannelCO2}

// Valid 通道白名单检查（列名会拼入 SQL，必须校验）
func (c Channel) Valid() bool {
	switch c {
	case ChannelTemperature, ChannelHumidity, ChannelCO, ChannelCO2:
		return true
	}
	return false
}

// Reading 环境读数领域模型（对应 environment_readings 表）
// 每个 (device_id, timestamp) 最多一行；各通道列独立写入（partial upsert），
// 同一分钟内不同通道的消息最终收敛到同一行
type Reading struct {
	DeviceID  string    `json:"device_id"`
	Timestamp time.Time `json:"timestamp"` // 本地时间（naive），分钟精度

	Temperature *float64 `json:"temperature_c"`
	Humidity    *float64 `json:"humidity_percent"`
	CO          *float64 `json:"co_ppm"`
	CO2         *float64 `json:"co2_ppm"`
}

// Value 按通道取值
func (r *Reading) Value(c Channel) *float64 {
	switch c {
	case ChannelTemperature:
		return r.Temperature
	case ChannelHumidity:
		return r.Humidity
	case ChannelCO:
		return r.CO
	case ChannelCO2:
		return r.CO2
	}
	return nil
}

// SetValue 按通道赋值
func (r *Reading) SetValue(c Channel, v *float64) {
	switch c {
	case ChannelTemperature:
		r.Temperature = v
	case ChannelHumidity:
		r.Humidity = v
	case ChannelCO:
		r.CO = v
	case ChannelCO2:
		r.CO2 = v
	}
}
