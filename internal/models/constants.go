package models

import "time"

const (
	// MaxRetries — потолок повторных попыток доставки для одной записи
	MaxRetries = 5

	// HistoryLimit количество последних записей в ленте сканирований
	HistoryLimit = 10

	// DebounceInterval пауза, после которой буфер сканера считается полным
	DebounceInterval = 150 * time.Millisecond

	// DefaultSyncInterval период фоновой синхронизации
	DefaultSyncInterval = 30 * time.Second

	// DefaultProbeInterval период проверки доступности сервера
	DefaultProbeInterval = 10 * time.Second

	// DefaultRequestTimeout таймаут одного запроса к серверу
	DefaultRequestTimeout = 10 * time.Second

	// DefaultHistoryTTL время жизни ленты сканирований в Redis
	DefaultHistoryTTL = 24 * time.Hour
)
