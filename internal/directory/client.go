package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"hearth/internal/domain"
)

// Client is an HTTP prekey directory client.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for the directory at base. hc may be nil,
// in which case http.DefaultClient is used.
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: base, http: hc}
}

// Register publishes the local device's bundle.
func (c *Client) Register(ctx context.Context, b domain.SignedPrekeyBundle) error {
	body, err := json.Marshal(b)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/bundles", bytes.NewReader(body))
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
		return fmt.Errorf("directory register: %s", resp.Status)
	}
	return nil
}

// FetchBundle retrieves the current bundle for addr. The directory
// consumes one one-time prekey per fetch.
func (c *Client) FetchBundle(ctx context.Context, addr domain.Address) (domain.SignedPrekeyBundle, error) {
	u := fmt.Sprintf("%s/v1/bundles/%s/%d", c.base, url.PathEscape(addr.UserID.String()), addr.DeviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.SignedPrekeyBundle{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SignedPrekeyBundle{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.SignedPrekeyBundle{}, fmt.Errorf("%w: no bundle published for %s", domain.ErrBundleInvalid, addr)
	}
	if resp.StatusCode/100 != 2 {
		return domain.SignedPrekeyBundle{}, fmt.Errorf("directory fetch %s: %s", addr, resp.Status)
	}
	var b domain.SignedPrekeyBundle
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return domain.SignedPrekeyBundle{}, fmt.Errorf("%w: %v", domain.ErrBundleInvalid, err)
	}
	return b, nil
}

var _ domain.PrekeyBundleProvider = (*Client)(nil)
