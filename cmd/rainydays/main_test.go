package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/rainydays/internal/config"
)

const catalogJSON = `{"data":[
	{"id":"j1","title":"Akra Jacket","price":100,"discountedPrice":80,"onSale":true,"sizes":["S","M"],"gender":"Female","tags":["jacket"]},
	{"id":"h1","title":"Rain Hat","price":20,"sizes":[],"gender":"Male","tags":["hat"]}
]}`

func setup(t *testing.T) *config.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rainy-days":
			_, _ = w.Write([]byte(catalogJSON))
		case "/rainy-days/j1":
			_, _ = w.Write([]byte(`{"data":{"id":"j1","title":"Akra Jacket","price":100,"discountedPrice":80,"onSale":true,"sizes":["S","M"]}}`))
		case "/rainy-days/h1":
			_, _ = w.Write([]byte(`{"data":{"id":"h1","title":"Rain Hat","price":20,"sizes":[]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return &config.Config{
		Env:            "test",
		LogLevel:       "error",
		StorageDriver:  config.DriverLocalFS,
		StorageDir:     t.TempDir(),
		Namespace:      "local",
		CatalogBaseURL: srv.URL,
		CatalogTimeout: time.Second,
		DeliveryDays:   10,
	}
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newCLI(cfg)
	app.Writer = &out
	app.ErrWriter = &out
	err := app.RunContext(context.Background(), append([]string{"rainydays"}, args...))
	return out.String(), err
}

func TestProductsCommand(t *testing.T) {
	cfg := setup(t)

	out, err := run(t, cfg, "products", "--tag", "jacket")
	require.NoError(t, err)
	assert.Contains(t, out, "Akra Jacket")
	assert.Contains(t, out, "80.00 (was 100.00)")
	assert.NotContains(t, out, "Rain Hat")

	out, err = run(t, cfg, "product", "h1")
	require.NoError(t, err)
	assert.Contains(t, out, "Price:  20.00")
}

func TestCartAndCheckoutCommands(t *testing.T) {
	cfg := setup(t)

	_, err := run(t, cfg, "cart", "add", "j1")
	assert.Error(t, err, "size is required")

	out, err := run(t, cfg, "cart", "add", "--size", "M", "--qty", "2", "j1")
	require.NoError(t, err)
	assert.Contains(t, out, "160.00")

	_, err = run(t, cfg, "cart", "add", "h1")
	require.NoError(t, err)
	_, err = run(t, cfg, "cart", "dec", "h1")
	require.NoError(t, err)

	out, err = run(t, cfg, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Akra Jacket")
	assert.NotContains(t, out, "Rain Hat")

	out, err = run(t, cfg, "checkout", "--name", "Ola Nordmann", "--email", "ola@example.no", "--address", "Storgata 1", "--phone", "12345678")
	require.NoError(t, err)
	assert.Contains(t, out, "Order number:   #RD")
	assert.Contains(t, out, "160.00")

	out, err = run(t, cfg, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Your cart is empty.")

	_, err = run(t, cfg, "checkout", "--name", "Ola Nordmann", "--email", "ola@example.no", "--address", "Storgata 1", "--phone", "12345678")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "orders.xlsx")
	out, err = run(t, cfg, "orders", "--xlsx", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Ola Nordmann")
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
