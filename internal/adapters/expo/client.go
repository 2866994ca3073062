package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/HugoFernandezz/Jaleo/internal/domain"
)

const defaultEndpoint = "https://exp.host/--/api/v2/push/send"

// Client delivers push notifications through the Expo push API to a fixed
// set of device tokens.
type Client struct {
	endpoint string
	tokens   []string
	hc       *http.Client
}

func New(tokens []string) *Client {
	return &Client{
		endpoint: defaultEndpoint,
		tokens:   tokens,
		hc:       &http.Client{Timeout: 10 * time.Second},
	}
}

// NewWithEndpoint exists for tests pointing at a fake push gateway.
func NewWithEndpoint(endpoint string, tokens []string) *Client {
	c := New(tokens)
	c.endpoint = endpoint
	return c
}

type pushMessage struct {
	To        []string       `json:"to"`
	Sound     string         `json:"sound"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	Priority  string         `json:"priority"`
	ChannelID string         `json:"channelId"`
}

type pushReceipt struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Send posts one note to every registered token. Per-token rejections are
// logged and counted; the call errors only when all deliveries failed or the
// gateway itself did.
func (c *Client) Send(ctx context.Context, note domain.PushNote) error {
	if len(c.tokens) == 0 {
		return nil
	}

	msg := pushMessage{
		To:        c.tokens,
		Sound:     "default",
		Title:     note.Title,
		Body:      note.Body,
		Data:      note.Data,
		Priority:  "high",
		ChannelID: "default",
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("expo push: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("expo push: decode response: %w", err)
	}

	// Expo answers with a list of receipts, or a single object for one token.
	var receipts []pushReceipt
	trimmed := bytes.TrimSpace(out.Data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &receipts); err != nil {
			return fmt.Errorf("expo push: decode receipts: %w", err)
		}
	} else if len(trimmed) > 0 {
		var one pushReceipt
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return fmt.Errorf("expo push: decode receipt: %w", err)
		}
		receipts = []pushReceipt{one}
	}

	failed := 0
	for i, r := range receipts {
		if r.Status != "ok" {
			failed++
			log.Warn().Int("token_index", i).Str("status", r.Status).Str("message", r.Message).
				Msg("push receipt not ok")
		}
	}
	if failed > 0 && failed == len(receipts) {
		return fmt.Errorf("expo push: all %d deliveries failed", failed)
	}
	return nil
}
