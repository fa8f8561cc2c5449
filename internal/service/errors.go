package service

import "errors"

// 查询侧参数错误：在访问存储之前校验，HTTP 层映射为 400
var (
	ErrInvalidGroup    = errors.New("unknown device group")
	ErrInvalidLocation = errors.New("unknown location")
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTime     = errors.New("invalid time, expected HH:MM")
	ErrMissingField    = errors.New("missing required field")
)
