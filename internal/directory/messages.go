package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"hearth/internal/domain"
)

// SendEnvelope enqueues env for its recipient on the directory.
func (c *Client) SendEnvelope(ctx context.Context, env domain.MessageEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/v1/messages/%s/%d", c.base, url.PathEscape(env.To.UserID.String()), env.To.DeviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("directory send: %s", resp.Status)
	}
	return nil
}

// FetchEnvelopes returns up to limit queued envelopes for addr without
// removing them. limit <= 0 fetches everything queued.
func (c *Client) FetchEnvelopes(ctx context.Context, addr domain.Address, limit int) ([]domain.MessageEnvelope, error) {
	u := fmt.Sprintf("%s/v1/messages/%s/%d", c.base, url.PathEscape(addr.UserID.String()), addr.DeviceID)
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("directory fetch messages: %s", resp.Status)
	}
	var envs []domain.MessageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envs); err != nil {
		return nil, err
	}
	return envs, nil
}

// AckEnvelopes drops the first n queued envelopes for addr. Callers ack
// only after the plaintext (or a decrypt failure) has been recorded
// locally, so a crash between fetch and ack re-delivers rather than
// loses.
func (c *Client) AckEnvelopes(ctx context.Context, addr domain.Address, n int) error {
	body, err := json.Marshal(map[string]int{"count": n})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/v1/messages/%s/%d/ack", c.base, url.PathEscape(addr.UserID.String()), addr.DeviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("directory ack: %s", resp.Status)
	}
	return nil
}

// stampSentAt fills a zero SentAt with the current unix time. The
// server applies it on enqueue so queued envelopes always carry a
// timestamp.
func stampSentAt(env domain.MessageEnvelope) domain.MessageEnvelope {
	if env.SentAt == 0 {
		env.SentAt = time.Now().Unix()
	}
	return env
}
