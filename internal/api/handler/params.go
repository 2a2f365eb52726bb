package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/repo_scan_server/internal/pkg/response"
)

// pathID reads a positive integer path parameter, replying with a
// parameter error when it is malformed.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return page, pageSize
}

// pageBounds mirrors the service clamp so the envelope reports what was served.
func pageBounds(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
