package senders

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Krimson/eda-forensics/internal/uplink"
)

// HTTPSender пишет пакет в realtime-канал методом PUT
type HTTPSender struct {
	url    string
	client *http.Client
}

func NewHTTPSender(url string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSender) Send(ctx context.Context, p *uplink.Packet) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: uplink returned status %d", ErrSendFailed, resp.StatusCode)
	}
	return nil
}

func (s *HTTPSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
