// internal/infra/drafter/remote.go
package drafter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"student_progress_notifier/internal/domain/conversation"
	"student_progress_notifier/internal/domain/student"
)

const (
	defaultRequestTimeout = 15 * time.Second
	maxResponseBytes      = 1 << 20 // 1 MB
)

// RemoteAgentDrafter calls an external drafting agent over HTTP. Any failure
// (transport, status, malformed or empty response) degrades to the
// deterministic template with a logged diagnostic, so Draft never fails from
// the pipeline's perspective.
type RemoteAgentDrafter struct {
	url    string
	client *http.Client
	logger *logrus.Entry
}

func NewRemoteAgentDrafter(url string, logger *logrus.Entry) *RemoteAgentDrafter {
	return &RemoteAgentDrafter{
		url:    url,
		client: &http.Client{Timeout: defaultRequestTimeout},
		logger: logger,
	}
}

type draftRequest struct {
	Student draftStudent `json:"student"`
	Flags   []string     `json:"flags"`
}

type draftStudent struct {
	StudentID           string                           `json:"studentId"`
	StudentName         string                           `json:"studentName"`
	Week                string                           `json:"week"`
	Metrics             map[string]float64               `json:"metrics"`
	LastActiveISO       string                           `json:"lastActiveIso,omitempty"`
	MetricsHistory      map[string][]draftHistoryPoint   `json:"metricsHistory,omitempty"`
	RecentConversations []conversation.Snippet           `json:"recentConversations,omitempty"`
}

type draftHistoryPoint struct {
	Week  string  `json:"week"`
	Value float64 `json:"value"`
}

type draftResponse struct {
	Message string `json:"message"`
}

func (d *RemoteAgentDrafter) Draft(ctx context.Context, rec *student.Record, flags []string) (string, error) {
	message, err := d.callAgent(ctx, rec, flags)
	if err != nil {
		d.logger.WithError(err).WithField("student_id", rec.StudentID).Warn("Remote drafting agent unavailable, falling back to template")
		return TemplateMessage(rec, flags), nil
	}
	return message, nil
}

func (d *RemoteAgentDrafter) callAgent(ctx context.Context, rec *student.Record, flags []string) (string, error) {
	payload := draftRequest{
		Student: draftStudent{
			StudentID:           rec.StudentID,
			StudentName:         rec.StudentName,
			Week:                rec.Week,
			Metrics:             rec.Metrics,
			LastActiveISO:       rec.LastActiveISO,
			MetricsHistory:      historyPoints(rec.MetricsHistory),
			RecentConversations: rec.RecentConversations,
		},
		Flags: flags,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode draft request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build draft request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("draft request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("draft agent returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read draft response: %w", err)
	}
	var parsed draftResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse draft response: %w", err)
	}
	if parsed.Message == "" {
		return "", fmt.Errorf("draft agent returned an empty message")
	}
	return parsed.Message, nil
}

func historyPoints(history map[string][]student.HistoryPoint) map[string][]draftHistoryPoint {
	if history == nil {
		return nil
	}
	out := make(map[string][]draftHistoryPoint, len(history))
	for metric, points := range history {
		converted := make([]draftHistoryPoint, len(points))
		for i, p := range points {
			converted[i] = draftHistoryPoint{Week: p.Week, Value: p.Value}
		}
		out[metric] = converted
	}
	return out
}
