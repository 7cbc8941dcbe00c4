// Package cli содержит команды cascade CLI.
//
// CLI общается с gateway только через HTTP API и не импортирует
// internal/api: дублирование DTO здесь осознанное, чтобы бинарник
// CLI не тянул серверные зависимости.
//
// Структура:
//   - client.go   — HTTP-клиент API
//   - output.go   — табличный и JSON вывод
//   - pipeline.go — команды pipeline list/run
//   - run.go      — команды run list/show
//   - service.go  — команды service list/refresh
package cli
