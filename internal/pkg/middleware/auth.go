package middleware

import (
	"net/http"
	"strings"

	"crypto_market/pkg/response"
	"crypto_market/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AuthMiddleware JWT认证中间件
// 账号体系本身由外部服务维护，这里只解析身份，把 userID 放进上下文
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		// 检查格式 "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		tokenString := parts[1]
		token, err := utils.ParseToken(tokenString)
		if err != nil || !token.Valid {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid or expired token")
			c.Abort()
			return
		}

		// 将 userID 和 role 存入上下文
		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			c.Set("userID", claims["user_id"])
			c.Set("role", claims["role"])
		}

		c.Next()
	}
}
