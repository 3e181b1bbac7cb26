// Package chain содержит ядро оркестрации: декларативные описания задач
// (TaskSpec), способность выполнения одной попытки (Work), рабочие данные
// chain (Data) и исполнитель (Executor), который гонит задачи строго
// последовательно с независимыми retry-циклами.
//
// # Модель выполнения
//
// Chain — это фиксированная упорядоченная последовательность именованных
// задач. Каждая задача повторяется независимо до своего потолка попыток
// (MaxAttempts); одна попытка — один вызов Work.Perform, для
// polling-задач это один опрос удалённого status endpoint'а. Первая
// неустранимая ошибка (исчерпание попыток или дедлайн всего chain)
// останавливает chain: последующие задачи не выполняются.
//
// # Стили work
//
// Оба стиля прячутся за интерфейсом Work:
//   - StatusProbe — polling: GET на удалённый endpoint, успех решает
//     переданный Predicate по декодированному JSON-ответу;
//   - WorkFunc — синхронная функция, возвращающая Outcome.
//
// Ошибка из Perform, «ещё не готово» (Outcome.Done == false) и
// отсутствующий required input эквивалентны: попытка потрачена, после
// RetryInterval будет следующая. Наружу такие ошибки не выходят.
package chain
