package relay

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"cloakchat/internal/domain"
)

// HTTP is the JSON-over-HTTP relay client.
type HTTP struct {
	Base  string
	Token string
	HTTP  *http.Client
}

// NewHTTP returns a client for the relay at base authenticating with token.
func NewHTTP(base, token string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{Base: base, Token: token, HTTP: client}
}

func (c *HTTP) AnnouncePublicKey(ctx context.Context, pub domain.X25519Public) error {
	req := domain.AnnounceRequest{PublicKey: base64.StdEncoding.EncodeToString(pub.Slice())}
	return c.post(ctx, "/announce", req, nil)
}

func (c *HTTP) RequestPeerKey(ctx context.Context, peerID string) error {
	return c.post(ctx, "/keys/request", domain.KeyRequest{PeerID: peerID}, nil)
}

func (c *HTTP) SendMessage(ctx context.Context, req domain.SendRequest) error {
	return c.post(ctx, "/messages", req, nil)
}

func (c *HTTP) ShareMedia(ctx context.Context, req domain.ShareRequest) error {
	return c.post(ctx, "/media/share", req, nil)
}

func (c *HTTP) RegisterMedia(ctx context.Context, req domain.RegisterMediaRequest) (string, error) {
	var out struct {
		MediaID string `json:"mediaId"`
	}
	if err := c.post(ctx, "/media", req, &out); err != nil {
		return "", err
	}
	return out.MediaID, nil
}

func (c *HTTP) FetchEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	path := "/events"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var events []domain.Event
	if err := c.getJSON(ctx, path, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *HTTP) AckEvents(ctx context.Context, n int) error {
	return c.post(ctx, "/events/ack", struct {
		Count int `json:"count"`
	}{Count: n}, nil)
}

func (c *HTTP) History(ctx context.Context, peerID string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := c.getJSON(ctx, "/history/"+url.PathEscape(peerID), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *HTTP) Provenance(ctx context.Context, mediaID string) (domain.Provenance, error) {
	var p domain.Provenance
	if err := c.getJSON(ctx, "/media/"+url.PathEscape(mediaID)+"/provenance", &p); err != nil {
		return domain.Provenance{}, err
	}
	return p, nil
}

func (c *HTTP) post(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTP) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay get %s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Compile-time assertion that HTTP implements domain.RelayClient.
var _ domain.RelayClient = (*HTTP)(nil)
