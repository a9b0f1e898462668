package gorm

import (
	"strings"

	"gorm.io/gorm/logger"
)

// LogLevel maps a configured level name to a GORM log level
func LogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info", "debug":
		return logger.Info
	default:
		return logger.Warn
	}
}
