// Package tracker содержит реестр состояния выполнения chains.
//
// Tracker — единственная точка записи и чтения состояния всех chains
// в процессе. Записи (records) мутируются только через методы Tracker,
// каждый метод — одна атомарная критическая секция за общим RWMutex.
// Чтения возвращают снапшоты с копиями слайсов и map, поэтому
// конкурентные читатели никогда не видят частично обновлённую запись.
//
// Контракт владения: запись для chain id создаётся ровно один раз
// (StartChain), после чего мутирующие вызовы для этого id делает только
// одна горутина-исполнитель. Терминальное состояние липкое: после
// установки end_time запись больше не изменяется.
package tracker
