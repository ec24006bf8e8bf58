package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ProductID is compared in its string form. The product API is not
// consistent about sending ids as strings or numbers, so both decode here.
type ProductID string

func (id *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ProductID(n.String())
	return nil
}

func (id ProductID) String() string { return string(id) }

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type Product struct {
	ID              ProductID        `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Price           decimal.Decimal  `json:"price"`
	DiscountedPrice *decimal.Decimal `json:"discountedPrice,omitempty"`
	OnSale          bool             `json:"onSale"`
	Image           Image            `json:"image"`
	Sizes           []string         `json:"sizes"`
	Gender          string           `json:"gender,omitempty"`
	Tags            []string         `json:"tags,omitempty"`
	BaseColor       string           `json:"baseColor,omitempty"`
	Favorite        bool             `json:"favorite,omitempty"`
}

type ProductFilter struct {
	Gender string
	Tag    string
	Query  string
	OnSale *bool
	Limit  int
}

// EffectivePrice is the price a cart line snapshots at add time.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.OnSale && p.DiscountedPrice != nil {
		return *p.DiscountedPrice
	}
	return p.Price
}

// Normalize applies the defaults the catalog boundary guarantees to the rest
// of the program.
func (p *Product) Normalize() {
	p.ID = ProductID(strings.TrimSpace(string(p.ID)))
	if p.Sizes == nil {
		p.Sizes = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Price.IsNegative() {
		p.Price = decimal.Zero
	}
	if p.DiscountedPrice != nil {
		d := *p.DiscountedPrice
		if d.IsNegative() {
			d = decimal.Zero
		}
		if d.GreaterThan(p.Price) {
			d = p.Price
		}
		p.DiscountedPrice = &d
	}
}

func (p *Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// SelectSize validates a size chosen for p. Products without sizes have a
// single implicit variant and always resolve to NoSize.
func (p *Product) SelectSize(size string) (string, error) {
	if len(p.Sizes) == 0 {
		return NoSize, nil
	}
	if size == NoSize {
		return NoSize, ErrSizeRequired
	}
	if !p.HasSize(size) {
		return NoSize, ErrUnknownSize
	}
	return size, nil
}
