package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"sitepilot/internal/apperr"
)

// StorageHandler stores uploaded project briefs.
type StorageHandler interface {
	Save(ctx context.Context, data []byte, filename, contentType string) (string, error)
	SignedURL(ctx context.Context, fileID string, ttl time.Duration) (string, error)
}

var (
	storageHandler StorageHandler
	handlerMu      sync.RWMutex
)

// RegisterStorageHandler sets the storage handler
func RegisterStorageHandler(h StorageHandler) {
	handlerMu.Lock()
	defer handlerMu.Unlock()
	storageHandler = h
}

// GetStorageHandler returns the registered storage handler
func GetStorageHandler() StorageHandler {
	handlerMu.RLock()
	defer handlerMu.RUnlock()
	return storageHandler
}

// respond writes body with success set to true.
func respond(c echo.Context, status int, body echo.Map) error {
	if body == nil {
		body = echo.Map{}
	}
	body["success"] = true
	return c.JSON(status, body)
}

// bind decodes the request into req and validates it. Validation failures
// are returned as-is so the error handler can list the failing fields.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code == http.StatusUnsupportedMediaType {
			return apperr.Invalid("Request body must be JSON")
		}
		return invalidBody()
	}
	return c.Validate(req)
}

func invalidBody() error {
	return apperr.Invalid("Malformed request body")
}

var errStorageMissing = errors.New("storage handler not configured")
