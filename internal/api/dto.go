package api

// StartChainRequest — запрос trigger endpoint'а. Тело опционально:
// inputs попадают в initial context запускаемого chain.
type StartChainRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

// ReceiptResponse — немедленный ответ trigger endpoint'а.
// Chain продолжает выполняться после ответа; итог виден только
// через status endpoint.
type ReceiptResponse struct {
	ChainID        string   `json:"chain_id"`
	Status         string   `json:"status"`
	StatusEndpoint string   `json:"status_endpoint"`
	TaskSequence   []string `json:"task_sequence"`
}
