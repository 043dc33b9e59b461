package integration

import (
	"encoding/json"
	"net/http"

	"github.com/productcomposite/backend/internal/domain"
	"go.uber.org/zap"
)

// ExtractMessage returns the message of an HttpErrorInfo body. When the body
// cannot be parsed the parse error's description is returned instead, so the
// result is always usable as an error message.
func ExtractMessage(body []byte) string {
	var info domain.HttpErrorInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return err.Error()
	}
	return info.Message
}

// translateProductError maps a failed product response onto the error taxonomy
func (c *Client) translateProductError(reqURL string, status int, body []byte) error {
	switch status {
	case http.StatusNotFound:
		return &domain.NotFoundError{Message: ExtractMessage(body)}
	case http.StatusUnprocessableEntity:
		return &domain.InvalidInputError{Message: ExtractMessage(body)}
	default:
		c.logger.Warn("Got an unexpected HTTP error, will return it unchanged",
			zap.String("url", reqURL),
			zap.Int("status", status),
			zap.ByteString("body", body),
		)
		return &domain.BackendStatusError{
			Service:    serviceProduct,
			URL:        reqURL,
			StatusCode: status,
			Body:       string(body),
		}
	}
}
