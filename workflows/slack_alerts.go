package workflows

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrSlackNotConfigured is returned when no webhook URL is set.
var ErrSlackNotConfigured = errors.New("slack webhook url is not set")

type SlackPayload struct {
	Text string `json:"text"`
}

// SlackReporter posts pipeline alerts to an incoming webhook.
type SlackReporter struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

func NewSlackReporter(webhookURL string) *SlackReporter {
	return &SlackReporter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
		now:        time.Now,
	}
}

// Enabled reports whether alerts are delivered anywhere.
func (r *SlackReporter) Enabled() bool {
	return r != nil && r.webhookURL != ""
}

// ReportError posts a bare error.
func (r *SlackReporter) ReportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(
		":rotating_light: *SOV Pipeline Error*\n"+
			"*Time:* %s\n"+
			"*Error:* ```%s```",
		r.now().UTC().Format(time.RFC3339),
		err.Error(),
	)
	return r.post(ctx, message)
}

// ReportPipelineFailure reports a failed workflow with its brand and session.
func (r *SlackReporter) ReportPipelineFailure(ctx context.Context, pipeline, brandID, brandName, sessionID, reason string, err error) error {
	if err == nil {
		return nil
	}
	if brandName == "" {
		brandName = "unknown"
	}
	if pipeline == "" {
		pipeline = "unknown"
	}
	if sessionID == "" {
		sessionID = "n/a"
	}

	message := fmt.Sprintf(
		":rotating_light: *SOV Pipeline Failure*\n"+
			"*Pipeline:* %s\n"+
			"*Brand:* %s (`%s`)\n"+
			"*Session:* `%s`\n"+
			"*Reason:* %s\n"+
			"*Time:* %s\n"+
			"*Error:* ```%s```",
		pipeline,
		brandName,
		brandID,
		sessionID,
		reason,
		r.now().UTC().Format(time.RFC3339),
		err.Error(),
	)
	return r.post(ctx, message)
}

func (r *SlackReporter) post(ctx context.Context, message string) error {
	if !r.Enabled() {
		return ErrSlackNotConfigured
	}
	body, err := json.Marshal(SlackPayload{Text: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.webhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}
