package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProductIDUnmarshal(t *testing.T) {
	cases := map[string]ProductID{
		`{"id":"b8b528fc-6c60-41f6-a5a9-9a8b27a9482a"}`: "b8b528fc-6c60-41f6-a5a9-9a8b27a9482a",
		`{"id":"  abc "}`: "abc",
		`{"id":42}`:       "42",
		`{"id":null}`:     "",
	}
	for in, want := range cases {
		var p Product
		require.NoError(t, json.Unmarshal([]byte(in), &p), in)
		assert.Equal(t, want, p.ID, in)
	}

	var p Product
	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &p))
}

func TestProductDecodesCatalogShape(t *testing.T) {
	raw := `{
		"id": "p1",
		"title": "Rainy Days Akra Jacket",
		"price": 139.99,
		"discountedPrice": 129.99,
		"onSale": true,
		"image": {"url": "https://img/akra.jpg", "alt": "Akra"},
		"sizes": ["S", "M", "L"],
		"gender": "Male",
		"tags": ["jacket", "mens"],
		"baseColor": "Blue"
	}`
	var p Product
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	p.Normalize()

	assert.Equal(t, ProductID("p1"), p.ID)
	assert.Equal(t, "https://img/akra.jpg", p.Image.URL)
	assert.Equal(t, []string{"S", "M", "L"}, p.Sizes)
	assert.Equal(t, "129.99", FormatPrice(p.EffectivePrice()))
}

func TestEffectivePrice(t *testing.T) {
	discount := dec("80")

	t.Run("regular price when not on sale", func(t *testing.T) {
		p := Product{Price: dec("100"), DiscountedPrice: &discount}
		assert.True(t, p.EffectivePrice().Equal(dec("100")))
	})

	t.Run("discounted price when on sale", func(t *testing.T) {
		p := Product{Price: dec("100"), DiscountedPrice: &discount, OnSale: true}
		assert.True(t, p.EffectivePrice().Equal(dec("80")))
	})

	t.Run("on sale without a discount", func(t *testing.T) {
		p := Product{Price: dec("100"), OnSale: true}
		assert.True(t, p.EffectivePrice().Equal(dec("100")))
	})
}

func TestNormalize(t *testing.T) {
	high := dec("150")
	p := Product{ID: " p1 ", Price: dec("100"), DiscountedPrice: &high}
	p.Normalize()

	assert.Equal(t, ProductID("p1"), p.ID)
	assert.NotNil(t, p.Sizes)
	assert.NotNil(t, p.Tags)
	require.NotNil(t, p.DiscountedPrice)
	assert.True(t, p.DiscountedPrice.Equal(dec("100")), "discount above price is capped")

	neg := Product{ID: "p2", Price: dec("-5")}
	neg.Normalize()
	assert.True(t, neg.Price.IsZero())
}

func TestSelectSize(t *testing.T) {
	sized := Product{ID: "p1", Sizes: []string{"S", "M"}}
	plain := Product{ID: "p2"}

	size, err := sized.SelectSize("M")
	require.NoError(t, err)
	assert.Equal(t, "M", size)

	_, err = sized.SelectSize("")
	assert.ErrorIs(t, err, ErrSizeRequired)

	_, err = sized.SelectSize("XXL")
	assert.ErrorIs(t, err, ErrUnknownSize)

	size, err = plain.SelectSize("M")
	require.NoError(t, err)
	assert.Equal(t, NoSize, size)
}
