// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"content-gen-api/internal/domain/repository"
)

// BindPage 从查询参数绑定分页，非法值回落到默认值
func BindPage(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), 20),
	)
}

// BindContentID 从 URI 绑定生成记录 ID
func BindContentID(c *gin.Context) string {
	return c.Param("id")
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
