package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/windoze95/manas-api/internal/logger"
	"github.com/windoze95/manas-api/internal/repository"
	"github.com/windoze95/manas-api/internal/service"
	"go.uber.org/zap"
)

// parseUintParam parses a string into a uint.
func parseUintParam(param string) (uint, error) {
	parsed, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, err
	}
	if parsed > uint64(^uint(0)) {
		return 0, fmt.Errorf("value out of range for uint: %d", parsed)
	}
	return uint(parsed), nil
}

// splitIDs accepts ids as repeated values, comma separated, or both.
func splitIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// respondError writes err as a JSON error. User errors keep their message,
// missing records become 404 and anything else is logged and reported with
// the fallback message.
func respondError(c *gin.Context, err error, fallback string) {
	if ue, ok := service.AsUserError(err); ok {
		status := http.StatusBadRequest
		if ue.Code == service.CodeNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": ue.Message})
		return
	}
	var notFound repository.NotFoundError
	if errors.As(err, &notFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
		return
	}
	logger.FromGin(c).Error(fallback, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}
