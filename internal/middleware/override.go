package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MethodOverride 表单方法改写：HTML 表单只能发 GET/POST，
// 带 _method=DELETE 的 POST 请求按 DELETE 处理。
func MethodOverride(r *gin.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodPost {
			if m := c.PostForm("_method"); m == http.MethodDelete {
				c.Request.Method = http.MethodDelete
				r.HandleContext(c)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}
