package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/exportflowlabs/exportflow/internal/notify/domain"
)

type Provider struct {
	client *http.Client
	url    string
}

func New(url string) *Provider {
	return &Provider{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		url: url,
	}
}

func (p *Provider) Name() string { return "webhook" }

func (p *Provider) Send(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(map[string]any{
		"event_id":   n.EventID,
		"export_id":  n.ExportID.String(),
		"event_type": n.EventType,
		"data":       n.Data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook_error: status=%d", resp.StatusCode)
	}
	return nil
}
