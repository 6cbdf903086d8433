package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classattendance/internal/auth"
	"classattendance/internal/pkg/clock"
	"classattendance/internal/pkg/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func newIssuer(clk clock.Clock) *auth.Issuer {
	return auth.NewIssuer("test-issuer", "secret", 15*time.Minute, time.Hour, clk)
}

func TestIssuer_IssueAndParse(t *testing.T) {
	clk := clock.NewMockClock(now)
	iss := newIssuer(clk)

	pair, err := iss.Issue("device-1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), pair.AccessExp)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := iss.Parse(pair.AccessToken, auth.KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "device-1", claims.Subject)
	assert.Equal(t, auth.RoleDevice, claims.Role)

	_, err = iss.Parse(pair.RefreshToken, auth.KindAccess)
	assert.True(t, errs.Is(err, auth.ErrInvalidToken))

	clk.Add(16 * time.Minute)
	_, err = iss.Parse(pair.AccessToken, auth.KindAccess)
	assert.True(t, errs.Is(err, auth.ErrInvalidToken))
}

func TestIssuer_RejectsForeignTokens(t *testing.T) {
	clk := clock.NewMockClock(now)
	pair, err := auth.NewIssuer("other", "secret", time.Minute, time.Minute, clk).Issue("d")
	require.NoError(t, err)
	_, err = newIssuer(clk).Parse(pair.AccessToken, auth.KindAccess)
	assert.Error(t, err)

	pair, err = auth.NewIssuer("test-issuer", "other-secret", time.Minute, time.Minute, clk).Issue("d")
	require.NoError(t, err)
	_, err = newIssuer(clk).Parse(pair.AccessToken, auth.KindAccess)
	assert.Error(t, err)
}

func TestService_RegisterAndRefreshRotates(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMockClock(now)
	svc := auth.NewService(newIssuer(clk), auth.NewMemoryDevices(clk))

	first, err := svc.Register(ctx, "phone")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.True(t, errs.Is(err, auth.ErrInvalidToken))

	_, err = svc.Refresh(ctx, second.AccessToken)
	assert.True(t, errs.Is(err, auth.ErrInvalidToken))

	_, err = svc.Register(ctx, "  ")
	assert.Error(t, err)
}

func TestDeviceAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clk := clock.NewMockClock(now)
	iss := newIssuer(clk)
	pair, err := iss.Issue("tablet")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", auth.DeviceAuth(iss), func(c *gin.Context) {
		c.String(http.StatusOK, auth.DeviceID(c))
	})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "valid token", header: "Bearer " + pair.AccessToken, status: http.StatusOK, body: "tablet"},
		{name: "lowercase scheme", header: "bearer " + pair.AccessToken, status: http.StatusOK, body: "tablet"},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "refresh token", header: "Bearer " + pair.RefreshToken, status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
