package noroff

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/rainydays/internal/domain"
)

const jacketJSON = `{
	"id": "b8b528fc-6c60-41f6-a5a9-9a8b27a9482a",
	"title": "Rainy Days Akra Jacket",
	"description": "The Akra Jacket is designed for the modern woman.",
	"gender": "Female",
	"sizes": ["XS", "S", "M"],
	"baseColor": "Blue",
	"price": 119.99,
	"discountedPrice": 99.99,
	"onSale": true,
	"image": {"url": "https://static.noroff.dev/api/rainy-days/0-akra-jacket.jpg", "alt": "Akra Jacket"},
	"tags": ["jacket", "womens"],
	"favorite": true
}`

func serve(t *testing.T, routes map[string]func(http.ResponseWriter)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		h, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[{"message":"No product with such ID"}]}`))
			return
		}
		h(w)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", time.Second)
}

func body(s string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) { _, _ = w.Write([]byte(s)) }
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()

	t.Run("data envelope", func(t *testing.T) {
		c := serve(t, map[string]func(http.ResponseWriter){
			"/rainy-days": body(`{"data":[` + jacketJSON + `,{"id":12,"title":"Numbered","price":"10"}],"meta":{"isFirstPage":true}}`),
		})
		list, err := c.ListProducts(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Rainy Days Akra Jacket", list[0].Title)
		assert.Equal(t, "99.99", domain.FormatPrice(list[0].EffectivePrice()))
		assert.Equal(t, domain.ProductID("12"), list[1].ID)
		assert.NotNil(t, list[1].Sizes)
	})

	t.Run("bare array", func(t *testing.T) {
		c := serve(t, map[string]func(http.ResponseWriter){
			"/rainy-days": body(`[` + jacketJSON + `]`),
		})
		list, err := c.ListProducts(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("products without id are dropped", func(t *testing.T) {
		c := serve(t, map[string]func(http.ResponseWriter){
			"/rainy-days": body(`{"data":[{"title":"ghost","price":1},` + jacketJSON + `]}`),
		})
		list, err := c.ListProducts(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("null data is an empty catalog", func(t *testing.T) {
		c := serve(t, map[string]func(http.ResponseWriter){"/rainy-days": body(`{"data":null}`)})
		list, err := c.ListProducts(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("non-2xx status", func(t *testing.T) {
		c := serve(t, map[string]func(http.ResponseWriter){
			"/rainy-days": func(w http.ResponseWriter) { w.WriteHeader(http.StatusServiceUnavailable) },
		})
		_, err := c.ListProducts(ctx)
		require.ErrorIs(t, err, domain.ErrFetch)
		var fe *domain.FetchError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusServiceUnavailable, fe.Status)
	})

	t.Run("malformed body", func(t *testing.T) {
		c := serve(t, map[string]func(http.ResponseWriter){"/rainy-days": body(`<html>oops`)})
		_, err := c.ListProducts(ctx)
		assert.ErrorIs(t, err, domain.ErrFetch)
	})

	t.Run("unreachable api", func(t *testing.T) {
		c := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
		_, err := c.ListProducts(ctx)
		assert.ErrorIs(t, err, domain.ErrFetch)
	})
}

func TestGetProduct(t *testing.T) {
	ctx := context.Background()
	c := serve(t, map[string]func(http.ResponseWriter){
		"/rainy-days/b8b528fc-6c60-41f6-a5a9-9a8b27a9482a": body(`{"data":` + jacketJSON + `}`),
		"/rainy-days/empty":  body(`{"data":{}}`),
		"/rainy-days/null":   body(`{"data":null}`),
		"/rainy-days/broken": func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) },
	})

	p, err := c.GetProduct(ctx, "b8b528fc-6c60-41f6-a5a9-9a8b27a9482a")
	require.NoError(t, err)
	assert.Equal(t, []string{"XS", "S", "M"}, p.Sizes)
	assert.True(t, p.Favorite)

	for _, id := range []domain.ProductID{"missing", "empty", "null"} {
		_, err := c.GetProduct(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
	}

	_, err = c.GetProduct(ctx, "broken")
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("", 0)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
}
