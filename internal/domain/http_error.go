package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// HttpErrorInfo is the error envelope backends return on failure.
// The same shape is written to clients by the HTTP layer.
type HttpErrorInfo struct {
	Timestamp  ErrorTimestamp `json:"timestamp"`
	Path       string         `json:"path"`
	HTTPStatus int            `json:"httpStatus"`
	Message    string         `json:"message"`
}

// NewHttpErrorInfo builds an envelope stamped with the current time
func NewHttpErrorInfo(status int, path, message string) HttpErrorInfo {
	return HttpErrorInfo{
		Timestamp:  ErrorTimestamp{Time: time.Now().UTC()},
		Path:       path,
		HTTPStatus: status,
		Message:    message,
	}
}

// ErrorTimestamp accepts either an ISO-8601 string or an epoch number.
// Epoch values above 1e12 are treated as milliseconds, otherwise seconds.
// Unrecognised values decode to the zero time so they never invalidate the envelope.
type ErrorTimestamp struct {
	time.Time
}

// MarshalJSON writes the timestamp as RFC3339 with nanoseconds
func (t ErrorTimestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler
func (t *ErrorTimestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			t.Time = time.Time{}
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		t.Time = time.Time{}
		return nil
	}

	epoch, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		t.Time = time.Time{}
		return nil
	}
	if epoch > 1e12 {
		epoch /= 1000
	}
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * 1e9)
	t.Time = time.Unix(sec, nsec).UTC()
	return nil
}
