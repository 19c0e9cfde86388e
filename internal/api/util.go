// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/loveindex/queryserver/internal/log"
	"github.com/loveindex/queryserver/internal/qserror"
	"github.com/loveindex/queryserver/internal/store"
)

// ErrorHandler maps a domain error onto its HTTP status and an empty
// JSON body. Unsupported combinations are surfaced at warn level;
// plain client errors only at debug.
func ErrorHandler(c *gin.Context, err error) {
	switch qserror.CodeOf(err) {
	case qserror.Unsupported:
		log.Warnf("unsupported query: %v", err)
	case qserror.Internal:
		log.Errorf("internal error: %v", err)
	default:
		log.Debugf("rejected request: %v", err)
	}
	c.JSON(qserror.StatusCode(err), gin.H{})
}

// parseLimit reads the mandatory positive limit parameter.
func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, qserror.NewBadRequest("limit is required")
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, qserror.NewBadRequest("limit must be a positive integer")
	}
	return limit, nil
}

// parseAccountID reads the :id path segment. Anything that isn't a
// well-formed id maps to 404, same as an empty slot.
func parseAccountID(c *gin.Context) (int32, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 || id > store.MaxID {
		return 0, qserror.NewNotFound("no such account: " + raw)
	}
	return int32(id), nil
}

// queryParams flattens the request query to first-value-wins form.
func queryParams(c *gin.Context) map[string]string {
	values := c.Request.URL.Query()
	params := make(map[string]string, len(values))
	for key, vs := range values {
		if len(vs) > 0 {
			params[key] = vs[0]
		}
	}
	return params
}
