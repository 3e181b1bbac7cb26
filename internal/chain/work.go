package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxProbeBody — потолок размера ответа status endpoint'а.
const maxProbeBody = 1 * 1024 * 1024 // 1 MB

// Predicate решает по декодированному ответу status endpoint'а,
// завершена ли удалённая операция.
type Predicate interface {
	Evaluate(body map[string]any) bool
}

// PredicateFunc — адаптер, позволяющий использовать функцию как Predicate.
type PredicateFunc func(body map[string]any) bool

// Evaluate вызывает f.
func (f PredicateFunc) Evaluate(body map[string]any) bool {
	return f(body)
}

// FieldEquals возвращает предикат «строковое поле key равно want».
func FieldEquals(key, want string) Predicate {
	return PredicateFunc(func(body map[string]any) bool {
		v, _ := body[key].(string)
		return v == want
	})
}

// StatusIs возвращает предикат «поле status равно want».
// Стандартная проверка для опроса долгих операций.
func StatusIs(want string) Predicate {
	return FieldEquals("status", want)
}

// StatusProbe — polling-стиль work: один вызов Perform — один GET на
// удалённый status endpoint. Ответ должен быть JSON-объектом как
// минимум с полем status и опционально числовым progress:
//
//	{"status": "RUNNING", "progress": 42.5, ...}
//
// Успех решает Succeeds по декодированному телу; полный декодированный
// ответ становится Output задачи. Транспортная ошибка, не-200 статус и
// недекодируемое тело — обычные ошибки попытки.
//
// Клиент без собственного таймаута: попытку ограничивает только общий
// дедлайн chain, который приходит через ctx.
type StatusProbe struct {
	// URL — адрес status endpoint'а.
	URL string

	// Succeeds — предикат завершения операции.
	Succeeds Predicate

	// Client — HTTP клиент; nil — http.DefaultClient.
	Client *http.Client
}

// Perform выполняет один опрос.
func (p *StatusProbe) Perform(ctx context.Context, _ Data) (Outcome, error) {
	if p.Succeeds == nil {
		return Outcome{}, fmt.Errorf("%w: no success predicate", ErrProbeFailed)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		// Отмена контекста — не ошибка опроса, отдаём её как есть
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		return Outcome{}, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{}, fmt.Errorf("%w: unexpected status %d", ErrProbeFailed, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: read body: %v", ErrProbeFailed, err)
	}

	var body map[string]any
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return Outcome{}, fmt.Errorf("%w: decode body: %v", ErrProbeFailed, err)
	}

	progress, _ := body["progress"].(float64)
	status, _ := body["status"].(string)

	return Outcome{
		Done:     p.Succeeds.Evaluate(body),
		Output:   body,
		Progress: progress,
		Status:   status,
	}, nil
}
