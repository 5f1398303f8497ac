package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/MCO-PICCOLO/TIMPANI-sub000/pkg/orcherr"
)

// Client is the node agent's half of the orchestrator↔node
// transport: it calls the HTTP server in http.go from the node side.
// It carries no retry policy of its own — pkg/nodeagent's state machine
// owns the retry loops (the 1 s/300-attempt connect retry, the 100 ms
// sync poll) this client's callers are driven by.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client dialing the orchestrator at baseURL (e.g.
// "http://10.0.0.1:7000").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// FetchSchedule calls fetch_schedule(node_id). A nil, zero-length
// payload means no workload is installed for this node yet; the caller
// treats that as transient and retries.
func (c *Client) FetchSchedule(nodeID string) ([]byte, error) {
	u := fmt.Sprintf("%s/v1/fetch_schedule?node_id=%s", c.baseURL, url.QueryEscape(nodeID))
	resp, err := c.http.Get(u)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Network, "transport.Client.FetchSchedule", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, orcherr.Wrap(orcherr.Network, "transport.Client.FetchSchedule", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, orcherr.Wrap(orcherr.Network, "transport.Client.FetchSchedule", err)
	}
	return data, nil
}

// SyncResult is the node-side view of a sync(node_id) call.
type SyncResult struct {
	Ack       int
	Timestamp time.Time
}

// Sync calls sync(node_id) once. Callers poll this every 100 ms until
// Ack == 1 before adopting the returned start timestamp.
func (c *Client) Sync(nodeID string) (SyncResult, error) {
	u := fmt.Sprintf("%s/v1/sync?node_id=%s", c.baseURL, url.QueryEscape(nodeID))
	resp, err := c.http.Post(u, "application/json", nil)
	if err != nil {
		return SyncResult{}, orcherr.Wrap(orcherr.Network, "transport.Client.Sync", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return SyncResult{}, orcherr.Wrap(orcherr.Network, "transport.Client.Sync", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var body syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return SyncResult{}, orcherr.Wrap(orcherr.Network, "transport.Client.Sync", err)
	}
	result := SyncResult{Ack: body.Ack}
	if body.Ack == 1 {
		result.Timestamp = time.Unix(body.TimestampSec, body.TimestampNsec)
	}
	return result, nil
}

// ReportMiss calls report_miss(node_id, task_name) one-shot, with no
// retry at this layer; the caller decides whether a failed report is
// worth repeating.
func (c *Client) ReportMiss(nodeID, taskName string) error {
	payload, err := json.Marshal(reportMissDoc{NodeID: nodeID, TaskName: taskName})
	if err != nil {
		return orcherr.Wrap(orcherr.Network, "transport.Client.ReportMiss", err)
	}
	resp, err := c.http.Post(c.baseURL+"/v1/report_miss", "application/json", bytes.NewReader(payload))
	if err != nil {
		return orcherr.Wrap(orcherr.Network, "transport.Client.ReportMiss", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return orcherr.Wrap(orcherr.Network, "transport.Client.ReportMiss", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
