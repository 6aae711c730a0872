package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rdarie/spikepipe/internal/domain/model"
)

// defaultHTTPTimeout bounds one request to the service.
const defaultHTTPTimeout = 30 * time.Second

// Ack mirrors the POST /jobs acknowledgement body.
type Ack struct {
	Status    string `json:"status"`
	JobID     string `json:"job_id"`
	Duplicate bool   `json:"duplicate"`
}

// client is a thin HTTP client for the jobs API.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SubmitJob posts a job spec and returns the acknowledgement.
func (c *client) SubmitJob(ctx context.Context, spec model.JobSpec) (Ack, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return Ack{}, fmt.Errorf("encode job spec: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Ack{}, fmt.Errorf("submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return Ack{}, fmt.Errorf("%w: status %d: %s", ErrSubmitRejected, resp.StatusCode, readBody(resp.Body))
	}
	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, fmt.Errorf("decode ack: %w", err)
	}
	return ack, nil
}

// GetJob fetches one job record.
func (c *client) GetJob(ctx context.Context, jobID string) (model.JobRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return model.JobRecord{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.JobRecord{}, fmt.Errorf("get job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.JobRecord{}, fmt.Errorf("%w: status %d: %s", ErrSubmitRejected, resp.StatusCode, readBody(resp.Body))
	}
	var rec model.JobRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return model.JobRecord{}, fmt.Errorf("decode job record: %w", err)
	}
	return rec, nil
}

func readBody(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(bytes.TrimSpace(raw))
}
