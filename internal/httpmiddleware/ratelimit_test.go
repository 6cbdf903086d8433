package httpmiddleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classattendance/internal/httpmiddleware"
	"classattendance/internal/pkg/clock"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_Allow(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	l := httpmiddleware.NewTokenBucket(2, 60, clk)

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "keys are independent")

	clk.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)

	clk.Add(time.Hour)
	for range 2 {
		ok, _ = l.Allow("a")
		assert.True(t, ok)
	}
	ok, _ = l.Allow("a")
	assert.False(t, ok, "refill is capped at capacity")
}

func TestTokenBucket_GinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clk := clock.NewMockClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC))
	r := gin.New()
	r.Use(httpmiddleware.NewTokenBucket(1, 1, clk).GinMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w
	}

	assert.Equal(t, http.StatusNoContent, do().Code)
	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}
