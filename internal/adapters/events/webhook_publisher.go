package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/atvirokodosprendimai/chorerules/internal/core/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookPublisher POSTs change-feed events to a subscriber endpoint, for
// example the chore app's cache invalidator. Non-2xx responses are returned as
// errors so the outbox dispatcher retries them.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookPublisher signs bodies with secret using HMAC-SHA256. An empty
// secret sends unsigned requests.
func NewWebhookPublisher(url, secret string, timeout time.Duration) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
	}
}

// Publish sets these headers on every request:
//
//	X-Chorerules-Topic:          <topic>
//	X-Chorerules-Event-Type:     <event.EventType>
//	X-Chorerules-Family:         <event.FamilyID>
//	X-Chorerules-Config-Version: <event.ConfigVersion>
//	X-Hub-Signature-256:         sha256=<hex HMAC>, only when a secret is set
func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Chorerules-Topic", topic)
	req.Header.Set("X-Chorerules-Event-Type", event.EventType)
	req.Header.Set("X-Chorerules-Family", event.FamilyID)
	req.Header.Set("X-Chorerules-Config-Version", strconv.FormatInt(event.ConfigVersion, 10))
	if len(p.secret) > 0 {
		req.Header.Set("X-Hub-Signature-256", "sha256="+p.sign(payload))
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", event.EventType, resp.StatusCode)
	}
	return nil
}

func (p *WebhookPublisher) sign(payload []byte) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
