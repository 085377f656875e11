package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"partyshop/internal/apperr"
	"partyshop/internal/composer"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAndReadiness(t *testing.T) {
	h := NewHandler(nil, nil, nil, nil)
	h.AddReadinessCheck("postgres", func(context.Context) error { return nil })
	router := newTestRouter(h)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	h.AddReadinessCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	w = doJSON(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest},
		{apperr.NotFound("product not found: %s", "x"), http.StatusNotFound},
		{apperr.Conflict("dup"), http.StatusConflict},
		{apperr.Upstream(errors.New("dial tcp"), "database error"), http.StatusBadGateway},
		{fmt.Errorf("cart c1: %w", apperr.NotFound("cart item not found")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestComposerApply(t *testing.T) {
	router := newTestRouter(NewHandler(nil, nil, nil, nil))

	w := doJSON(t, router, http.MethodPost, "/api/v1/composer/apply", gin.H{
		"draft": composer.Draft{},
		"ops": []composer.Op{
			{Type: composer.OpAddColor, Name: "Gold"},
			{Type: composer.OpAddSize, ColorID: "$last", Size: "m"},
			{Type: composer.OpCommitVariants, ColorID: "$last"},
			{Type: composer.OpUpdateVariant, Color: "Gold", Size: "M", Field: composer.FieldPrice, Value: "12.5"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Draft         composer.Draft  `json:"draft"`
		ReadyToCommit map[string]bool `json:"readyToCommit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Draft.Variants, 1)
	assert.Equal(t, "M", resp.Draft.Variants[0].Size)
	assert.Equal(t, "12.5", resp.Draft.Variants[0].Price.String())
	assert.Len(t, resp.ReadyToCommit, 1)
}

func TestComposerApplyErrors(t *testing.T) {
	router := newTestRouter(NewHandler(nil, nil, nil, nil))

	w := doJSON(t, router, http.MethodPost, "/api/v1/composer/apply", gin.H{
		"ops": []composer.Op{
			{Type: composer.OpAddColor},
			{Type: composer.OpAddSize, ColorID: "$last", Size: "M"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "color name required", body["error"])

	w = doJSON(t, router, http.MethodPost, "/api/v1/composer/apply", gin.H{
		"ops": []composer.Op{{Type: composer.OpRemoveColor, ColorID: "nope"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParseProductFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet,
		"/api/v1/products?q=balloon&minPrice=5&maxPrice=20.50&vendor=Acme,Globex&tag=gold&tag=foil&limit=10", nil)

	f, err := parseProductFilter(c)
	require.NoError(t, err)
	assert.Equal(t, "balloon", f.Search)
	assert.Equal(t, "5", f.MinPrice.String())
	assert.Equal(t, "20.5", f.MaxPrice.String())
	assert.Equal(t, []string{"Acme", "Globex"}, f.Vendors)
	assert.Equal(t, []string{"gold", "foil"}, f.Tags)
	assert.Nil(t, f.Categories)
	assert.Equal(t, 10, f.Limit)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/products?minPrice=cheap", nil)
	_, err = parseProductFilter(c)
	assert.Error(t, err)
}
