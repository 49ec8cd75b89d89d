package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLimitParam reads a positive "limit" query parameter, falling back
// to def and clamping at max.
func GetLimitParam(c *gin.Context, def, max int) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if err != nil || limit < 1 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
