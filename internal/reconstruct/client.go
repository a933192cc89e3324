package reconstruct

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Client HTTP-фасад внешнего ML бэкенда
type Client struct {
	baseURL    string
	httpClient *http.Client
	validate   *validator.Validate
}

// NewClient создает клиента бэкенда по базовому адресу (http://127.0.0.1:8000)
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// BaseURL адрес бэкенда
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze реконструирует окно сырых отсчетов.
// Ответ проверяется по схеме; несоответствие возвращает ErrSchemaMismatch.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	var resp AnalyzeResponse
	if err := c.postJSON(ctx, "/analyze", req, &resp); err != nil {
		return nil, err
	}

	if err := c.validate.Struct(&resp); err != nil {
		return nil, fmt.Errorf("%w: analyze: %v", ErrSchemaMismatch, err)
	}
	if len(resp.RefinedData) != len(req.RawData) {
		return nil, fmt.Errorf("%w: analyze returned %d values for %d samples",
			ErrSchemaMismatch, len(resp.RefinedData), len(req.RawData))
	}

	return &resp, nil
}

// Benchmark запускает полный перебор 127 комбинаций над всей историей сессии
func (c *Client) Benchmark(ctx context.Context, raw []float64) (*BenchmarkResponse, error) {
	var resp BenchmarkResponse
	if err := c.postJSON(ctx, "/benchmark", BenchmarkRequest{RawData: raw}, &resp); err != nil {
		return nil, err
	}

	if err := c.validate.Struct(&resp); err != nil {
		return nil, fmt.Errorf("%w: benchmark: %v", ErrSchemaMismatch, err)
	}

	return &resp, nil
}

// LogTelemetry отправляет строку признаков в журнал бэкенда; тело ответа не используется
func (c *Client) LogTelemetry(ctx context.Context, row any) error {
	return c.postJSON(ctx, "/log_telemetry", row, nil)
}

// DownloadCSV открывает выгрузку журнала бэкенда. Содержимое не разбирается,
// вызывающий обязан закрыть поток.
func (c *Client) DownloadCSV(ctx context.Context) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download_csv", nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, "", fmt.Errorf("%w: download_csv status %d", ErrBackendUnavailable, resp.StatusCode)
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Ping проверяет, что узел бэкенда жив (GET /)
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: %s status %d: %s", ErrBackendUnavailable, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchemaMismatch, path, err)
	}

	log.Printf("[ML_SERVICE] %s answered %d", path, resp.StatusCode)
	return nil
}
