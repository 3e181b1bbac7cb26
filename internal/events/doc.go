// Package events публикует события жизненного цикла chains в RabbitMQ.
//
// Публикация fire-and-forget: ошибки логируются и никогда не влияют на
// выполнение chain. Процесс ничего не потребляет из очередей — события
// предназначены внешним подписчикам, которые сами объявляют и биндят
// свои очереди к exchange conveyor.chains.
package events
