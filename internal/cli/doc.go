// Package cli реализует инструмент командной строки conveyor.
//
// # Обзор
//
// CLI разговаривает с сервисом только через HTTP API — никакого
// прямого доступа к реестру. Типы ответов дублируются из api
// сознательно: клиент не импортирует internal/api и не ломается от
// его рефакторингов.
//
// Структура:
//   - client.go — HTTP-клиент и типы wire-формата
//   - chain.go  — команды chain start/status/active
//   - health.go — команда health
//   - output.go — табличный и JSON вывод
package cli
