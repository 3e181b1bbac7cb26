package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api, CLI не импортирует internal/api) ---

// ReceiptResponse — квитанция trigger endpoint'а.
type ReceiptResponse struct {
	ChainID        string   `json:"chain_id"`
	Status         string   `json:"status"`
	StatusEndpoint string   `json:"status_endpoint"`
	TaskSequence   []string `json:"task_sequence"`
}

// ProgressResponse — агрегированный прогресс chain.
type ProgressResponse struct {
	CompletedTasks int     `json:"completed_tasks"`
	TotalTasks     int     `json:"total_tasks"`
	Percentage     float64 `json:"percentage"`
}

// CompletedTaskResponse — завершённая задача chain.
type CompletedTaskResponse struct {
	Task           string         `json:"task"`
	CompletionTime string         `json:"completion_time"`
	Attempts       int            `json:"attempts"`
	Result         map[string]any `json:"result,omitempty"`
}

// ChainStatusResponse — полный снимок chain из API.
type ChainStatusResponse struct {
	ChainID        string                  `json:"chain_id"`
	Status         string                  `json:"status"`
	Progress       ProgressResponse        `json:"progress"`
	TaskSequence   []string                `json:"task_sequence"`
	CurrentTask    string                  `json:"current_task,omitempty"`
	CompletedTasks []CompletedTaskResponse `json:"completed_tasks"`
	Attempts       map[string]int          `json:"attempts,omitempty"`
	StartTime      string                  `json:"start_time"`
	LastUpdated    string                  `json:"last_updated"`
	EndTime        string                  `json:"end_time,omitempty"`
	Error          string                  `json:"error,omitempty"`
	FailedTask     string                  `json:"failed_task,omitempty"`
}

// ActiveChainResponse — сокращённый снимок выполняющегося chain.
type ActiveChainResponse struct {
	CurrentTask string           `json:"current_task,omitempty"`
	Progress    ProgressResponse `json:"progress"`
	StartTime   string           `json:"start_time"`
	LastUpdated string           `json:"last_updated"`
}

// HealthResponse — ответ health endpoint'а.
type HealthResponse struct {
	Status string `json:"status"`
}

// --- Request types ---

// StartChainRequest — запуск chain.
type StartChainRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

// --- API error envelope ---

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для conveyor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StartChain запускает новый chain.
func (c *Client) StartChain(req StartChainRequest) (*ReceiptResponse, error) {
	var receipt ReceiptResponse
	if err := c.post("/api/v1/chains", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// GetChain возвращает снимок chain по ID.
func (c *Client) GetChain(id string) (*ChainStatusResponse, error) {
	var status ChainStatusResponse
	if err := c.get("/api/v1/chains/"+id, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ListActive возвращает выполняющиеся chains.
func (c *Client) ListActive() (map[string]ActiveChainResponse, error) {
	active := make(map[string]ActiveChainResponse)
	if err := c.get("/api/v1/chains", &active); err != nil {
		return nil, err
	}
	return active, nil
}

// Health проверяет живость сервиса.
func (c *Client) Health() (*HealthResponse, error) {
	var health HealthResponse
	if err := c.get("/healthz", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// --- HTTP plumbing ---

func (c *Client) get(path string, result any) error {
	return c.do(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body, result any) error {
	return c.do(http.MethodPost, path, body, result)
}

func (c *Client) do(method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
