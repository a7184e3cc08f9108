package xmetrics

import "time"

// 常用属性名。
const (
	AttrKey    = "key"
	AttrResult = "result"
	AttrPrefix = "prefix"
)

// String 创建字符串属性。
func String(key, value string) Attr { return Attr{Key: key, Value: value} }

// Int64 创建整数属性。
func Int64(key string, value int64) Attr { return Attr{Key: key, Value: value} }

// Bool 创建布尔属性。
func Bool(key string, value bool) Attr { return Attr{Key: key, Value: value} }

// Duration 创建时长属性，导出为毫秒整数。
func Duration(key string, value time.Duration) Attr { return Attr{Key: key, Value: value} }
