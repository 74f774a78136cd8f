package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetPagination 从查询参数解析分页，page 从 1 开始
func GetPagination(c *gin.Context) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	offset = (page - 1) * limit
	return
}
