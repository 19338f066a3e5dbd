package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"bidio/internal/biderrors"
	"bidio/internal/channel"
	"bidio/internal/manager"
	"bidio/internal/models"
	"bidio/utils"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biderrors.ErrMissingID),
		errors.Is(err, biderrors.ErrMissingOwner),
		errors.Is(err, biderrors.ErrInvalidQuery),
		errors.Is(err, biderrors.ErrParser),
		errors.Is(err, manager.ErrInvalidChannel):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, biderrors.ErrBidNotFound):
		return http.StatusNotFound, "bid not found"
	case errors.Is(err, biderrors.ErrLockedByAnotherUser):
		return http.StatusConflict, "bid locked by another user"
	case errors.Is(err, biderrors.ErrBidCompleted):
		return http.StatusConflict, "bid is completed"
	case errors.Is(err, biderrors.ErrBidNotLocked):
		return http.StatusConflict, "bid is not locked"
	case errors.Is(err, biderrors.ErrUnknownState):
		return http.StatusUnprocessableEntity, "unknown bid state"
	case errors.Is(err, biderrors.ErrStoreTimeout):
		return http.StatusGatewayTimeout, "store timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// ParseBidID reads the :id path parameter
func ParseBidID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bid id %q: %w", raw, biderrors.ErrMissingID)
	}
	return id, nil
}

// ParseUser decodes the owner carried by the X-Bid-User header, if any
func ParseUser(c *gin.Context) (models.Owner, error) {
	raw := c.GetHeader(HeaderUser)
	if raw == "" {
		return nil, nil
	}
	var user models.Owner
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("%s header: %w", HeaderUser, err)
	}
	return user, nil
}

// ConnID returns the sender's connection id, or a fresh one. The reserved
// server id is never accepted from a client.
func ConnID(c *gin.Context) string {
	if id := c.GetHeader(HeaderConn); id != "" && id != channel.ServerID {
		return id
	}
	return utils.GenerateConnID()
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
