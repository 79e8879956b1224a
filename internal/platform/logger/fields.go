package logger

import (
	"time"

	"go.uber.org/zap"
)

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func EmployerID(v string) zap.Field { return zap.String("employer_id", v) }

// ExternalID は IdP 側のアカウント ID です。
func ExternalID(v string) zap.Field { return zap.String("external_id", v) }

func Caller(v string) zap.Field { return zap.String("caller", v) }

// Messages は通知メッセージ一覧です。
func Messages(v []string) zap.Field { return zap.Strings("messages", v) }

func Err(err error) zap.Field { return zap.Error(err) }
