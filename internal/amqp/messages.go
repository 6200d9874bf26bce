package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrPermanent marks a request that can never succeed. Such messages are
// dropped instead of requeued.
var ErrPermanent = errors.New("permanent failure")

// ReportRequestMessage asks the worker to generate reports.
// A nil Year means the current year; no Months means the previous month.
type ReportRequestMessage struct {
	RequestID string    `json:"request_id"`
	Year      *int      `json:"year,omitempty"`
	Months    []int     `json:"months,omitempty"`
	Format    string    `json:"format,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReportRequestMessage creates a request stamped with the current time.
func NewReportRequestMessage(requestID string, year *int, months []int, format string) *ReportRequestMessage {
	return &ReportRequestMessage{
		RequestID: requestID,
		Year:      year,
		Months:    months,
		Format:    format,
		Timestamp: time.Now(),
	}
}

// Validate checks the fields that do not depend on the clock.
func (m *ReportRequestMessage) Validate() error {
	for _, mo := range m.Months {
		if mo < 1 || mo > 12 {
			return fmt.Errorf("%w: invalid message: month %d must be between 1 and 12", ErrPermanent, mo)
		}
	}
	switch strings.ToLower(m.Format) {
	case "", "csv", "xlsx", "pdf":
	default:
		return fmt.Errorf("%w: invalid message: unknown format %q", ErrPermanent, m.Format)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportRequestMessageFromJSON creates a request from JSON bytes.
func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: invalid message: %v", ErrPermanent, err)
	}
	return &msg, nil
}

// CompletedOutput is one file listed in a completion message.
type CompletedOutput struct {
	Label string `json:"label"`
	Path  string `json:"path"`
	Total string `json:"total"`
}

// ReportCompletedMessage announces the outcome of a request.
type ReportCompletedMessage struct {
	RequestID string            `json:"request_id"`
	RunID     int64             `json:"run_id,omitempty"`
	Status    string            `json:"status"`
	Succeeded []string          `json:"succeeded,omitempty"`
	Failed    []string          `json:"failed,omitempty"`
	Warnings  int               `json:"warnings"`
	Outputs   []CompletedOutput `json:"outputs,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ToJSON converts the message to JSON bytes
func (m *ReportCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportCompletedMessageFromJSON creates a completion message from JSON bytes.
func ReportCompletedMessageFromJSON(data []byte) (*ReportCompletedMessage, error) {
	var msg ReportCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
