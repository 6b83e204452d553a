package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"telecare-sos/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

func serve(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signed(t *testing.T, userType string) string {
	t.Helper()
	token, err := utils.GenerateAccessToken("user-1", userType, secret, time.Hour)
	require.NoError(t, err)
	return token
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/optional", OptionalAuth(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	router.GET("/operators", AuthRequired(secret), OperatorRequired(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := serve(router, "/optional", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	w = serve(router, "/optional", signed(t, utils.UserTypePatient))
	assert.Equal(t, "user-1", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(router, "/optional", "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, "/operators", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, "/operators", signed(t, utils.UserTypePatient)).Code)
	assert.Equal(t, http.StatusOK, serve(router, "/operators", signed(t, utils.UserTypeOperator)).Code)
	assert.Equal(t, http.StatusOK, serve(router, "/operators?token="+signed(t, utils.UserTypeAdmin), "").Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	_, err := RateLimit("lots", nil)
	assert.Error(t, err)

	limit, err := RateLimit("2-M", nil)
	require.NoError(t, err)
	router := gin.New()
	router.GET("/limited", limit, func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(router, "/limited", "").Code)
	second := serve(router, "/limited", "")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, serve(router, "/limited", "").Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(router, "/", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}
