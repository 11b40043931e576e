// Package predictor wraps the external wait-time prediction service.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable indicates the prediction service could not be reached
// or returned an unusable response.
var ErrUnavailable = errors.New("prediction service unavailable")

// FallbackMinutesPerPatient is used when the service reports a zero or
// missing total wait for a non-trivial queue.
const FallbackMinutesPerPatient = 10.0

// Prediction is the normalized result of a prediction call.
type Prediction struct {
	// TotalWaitMinutes is the raw predicted wait for the whole queue.
	TotalWaitMinutes float64
	// MinutesPerPatient is the per-slot rate derived from the total.
	MinutesPerPatient float64
	// PriorityScore is the severity score computed by the service.
	PriorityScore float64
}

type predictRequest struct {
	Symptoms  []string `json:"symptoms"`
	QueueSize int      `json:"queue_size"`
}

type predictResponse struct {
	PredictedWaitMinutes float64 `json:"predicted_wait_minutes"`
	PriorityScore        float64 `json:"priority_score"`
}

// Client calls the prediction service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL. Timeout applies to the
// full request including connection setup and body read.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Predict asks the service for a wait estimate given the symptoms of
// the most recent arrival and the current queue size. The returned
// MinutesPerPatient divides the total wait across the people ahead of
// the newest entry, falling back to a fixed rate when the service
// reports zero.
func (c *Client) Predict(ctx context.Context, symptoms []string, queueSize int) (Prediction, error) {
	body, err := json.Marshal(predictRequest{
		Symptoms:  symptoms,
		QueueSize: queueSize,
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("encoding predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("building predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	var pr predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return Prediction{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	return Prediction{
		TotalWaitMinutes:  pr.PredictedWaitMinutes,
		MinutesPerPatient: minutesPerPatient(pr.PredictedWaitMinutes, queueSize),
		PriorityScore:     pr.PriorityScore,
	}, nil
}

// minutesPerPatient converts a total queue wait into a per-slot rate.
// The newest arrival does not count toward its own wait, hence the
// queueSize-1 divisor.
func minutesPerPatient(totalMinutes float64, queueSize int) float64 {
	divisor := queueSize - 1
	if divisor < 1 {
		divisor = 1
	}
	rate := totalMinutes / float64(divisor)
	if rate <= 0 {
		return FallbackMinutesPerPatient
	}
	return rate
}
