package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/phenrril/rainydays/internal/domain"
)

type ProductUC struct {
	Products domain.Catalog
}

// List fetches the catalog and filters it in memory. Limit caps the result
// the way the home page shows a few products and the shop page a dozen.
func (uc *ProductUC) List(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	all, err := uc.Products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	gender := strings.ToLower(strings.TrimSpace(f.Gender))
	tag := strings.ToLower(strings.TrimSpace(f.Tag))
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := []domain.Product{}
	for _, p := range all {
		if gender != "" && strings.ToLower(p.Gender) != gender {
			continue
		}
		if tag != "" && !hasTag(p, tag) {
			continue
		}
		if f.OnSale != nil && p.OnSale != *f.OnSale {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func hasTag(p domain.Product, tag string) bool {
	for _, t := range p.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

func matchesQuery(p domain.Product, q string) bool {
	if strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Description), q) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func (uc *ProductUC) Get(ctx context.Context, id domain.ProductID) (*domain.Product, error) {
	id = domain.ProductID(strings.TrimSpace(string(id)))
	if id == "" {
		return nil, errors.Wrap(domain.ErrInvalidArgument, "empty product id")
	}
	return uc.Products.GetProduct(ctx, id)
}

func (uc *ProductUC) Genders(ctx context.Context) ([]string, error) {
	all, err := uc.Products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(all, func(p domain.Product) []string { return []string{p.Gender} }), nil
}

func (uc *ProductUC) Tags(ctx context.Context) ([]string, error) {
	all, err := uc.Products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(all, func(p domain.Product) []string { return p.Tags }), nil
}

func distinct(list []domain.Product, values func(domain.Product) []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range list {
		for _, v := range values(p) {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			k := strings.ToLower(v)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
