package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smagulov/fieldtask/internal/models"
)

// Client pushes session state to the dispatch service. Pushes are idempotent
// full-sequence replacements, never deltas, so a failed push needs no retry
// bookkeeping: the next state change pushes the complete latest sequence.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type upsertBody struct {
	Sessions []models.Session  `json:"sessions"`
	Status   models.TaskStatus `json:"status"`
}

// Push upserts the full session sequence and derived status onto the remote
// task record. Only the status code matters; the response body is ignored.
func (c *Client) Push(ctx context.Context, remoteID string, sessions []models.Session, status models.TaskStatus) error {
	if sessions == nil {
		sessions = []models.Session{}
	}
	payload, err := json.Marshal(upsertBody{Sessions: sessions, Status: status})
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	url := fmt.Sprintf("%s/tasks/%s", c.baseURL, remoteID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remote upsert returned %d", resp.StatusCode)
	}
	return nil
}
