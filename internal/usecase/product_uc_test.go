package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/rainydays/internal/domain"
)

func setupProducts() *ProductUC {
	return &ProductUC{Products: &fakeCatalog{products: []domain.Product{
		{ID: "1", Title: "Akra Jacket", Description: "Waterproof shell", Gender: "Male", Tags: []string{"jacket", "mens"}, OnSale: true},
		{ID: "2", Title: "Hiking Pants", Description: "Light and quick drying", Gender: "Female", Tags: []string{"pants", "womens"}},
		{ID: "3", Title: "Rain Jacket", Description: "Everyday rain protection", Gender: "female", Tags: []string{"Jacket", "womens"}},
		{ID: "4", Title: "Trail Jacket", Description: "Breathable", Gender: "Male", Tags: []string{"jacket"}},
	}}}
}

func ids(list []domain.Product) []domain.ProductID {
	out := make([]domain.ProductID, 0, len(list))
	for _, p := range list {
		out = append(out, p.ID)
	}
	return out
}

func TestProductList(t *testing.T) {
	ctx := context.Background()
	uc := setupProducts()
	yes := true

	cases := []struct {
		name string
		f    domain.ProductFilter
		want []domain.ProductID
	}{
		{"no filter", domain.ProductFilter{}, []domain.ProductID{"1", "2", "3", "4"}},
		{"gender ignores case", domain.ProductFilter{Gender: "FEMALE"}, []domain.ProductID{"2", "3"}},
		{"tag ignores case", domain.ProductFilter{Tag: "jacket"}, []domain.ProductID{"1", "3", "4"}},
		{"on sale", domain.ProductFilter{OnSale: &yes}, []domain.ProductID{"1"}},
		{"query matches description", domain.ProductFilter{Query: "rain"}, []domain.ProductID{"3"}},
		{"limit", domain.ProductFilter{Tag: "jacket", Limit: 2}, []domain.ProductID{"1", "3"}},
		{"nothing matches", domain.ProductFilter{Query: "umbrella"}, []domain.ProductID{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			list, err := uc.List(ctx, tc.f)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(list))
		})
	}
}

func TestProductListFetchError(t *testing.T) {
	uc := &ProductUC{Products: &fakeCatalog{err: &domain.FetchError{Status: 500}}}
	_, err := uc.List(context.Background(), domain.ProductFilter{})
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestProductGet(t *testing.T) {
	ctx := context.Background()
	uc := setupProducts()

	p, err := uc.Get(ctx, " 3 ")
	require.NoError(t, err)
	assert.Equal(t, "Rain Jacket", p.Title)

	_, err = uc.Get(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = uc.Get(ctx, "99")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGendersAndTags(t *testing.T) {
	ctx := context.Background()
	uc := setupProducts()

	genders, err := uc.Genders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Female", "Male"}, genders)

	tags, err := uc.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jacket", "mens", "pants", "womens"}, tags)
}
