package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/marketgrid/storefront-backend-go/config"
	"github.com/marketgrid/storefront-backend-go/mailer"
	"github.com/marketgrid/storefront-backend-go/store"
)

type testEnv struct {
	handler  *Handler
	products *store.MemoryProducts
	orders   *store.MemoryOrders
	users    *store.MemoryUsers
	settings *store.MemorySettings
}

func newTestEnv(cfg config.Config) *testEnv {
	if cfg.OrderNumberPrefix == "" {
		cfg.OrderNumberPrefix = "ORD"
	}
	if cfg.LowStockThreshold == 0 {
		cfg.LowStockThreshold = 5
	}
	cfg.JWTSecret = "test-secret"

	products := store.NewMemoryProducts()
	orders := store.NewMemoryOrders()
	users := store.NewMemoryUsers()
	settings := store.NewMemorySettings()

	return &testEnv{
		handler:  New(products, orders, users, settings, mailer.LogMailer{}, nil, cfg),
		products: products,
		orders:   orders,
		users:    users,
		settings: settings,
	}
}

type call struct {
	method string
	path   string
	body   interface{}
	query  string
	params map[string]string
	userID primitive.ObjectID
	admin  bool
}

// invoke runs a handler against a synthetic echo context, the way the auth
// middleware would have prepared it.
func (env *testEnv) invoke(t *testing.T, handlerFunc echo.HandlerFunc, c call) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}

	target := c.path
	if c.query != "" {
		target += "?" + c.query
	}
	req := httptest.NewRequest(c.method, target, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e := echo.New()
	ctx := e.NewContext(req, rec)
	if len(c.params) > 0 {
		names := make([]string, 0, len(c.params))
		values := make([]string, 0, len(c.params))
		for k, v := range c.params {
			names = append(names, k)
			values = append(values, v)
		}
		ctx.SetParamNames(names...)
		ctx.SetParamValues(values...)
	}
	if !c.userID.IsZero() {
		ctx.Set("userID", c.userID)
	}
	ctx.Set("isAdmin", c.admin)

	require.NoError(t, handlerFunc(ctx))
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	decodeBody(t, rec, &body)
	code, _ := body["error"].(string)
	return code
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "unexpected status, body: %s", rec.Body.String())
}
