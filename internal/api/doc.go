// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go       — Handler с DI (executor, tracker, blueprint, logger)
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — middleware (recovery, logging, metrics)
//   - response.go      — унифицированные JSON-ответы с ошибками
//   - dto.go           — Data Transfer Objects (request/response)
//   - chain_handler.go — обработчики для /chains
//
// API предоставляет trigger endpoint, запускающий chain асинхронно,
// и read-only проекцию реестра для опроса статуса. Тела успешных
// ответов — без обёртки; ошибки — конверт {"error":{code,message}}.
package api
