package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// prices go out as JSON numbers, the way the browser stored them
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	CartKey         = "cart"
	OrderHistoryKey = "orderHistory"
)

// NoSize marks a line for a product without size variants. It never equals a
// concrete size.
const NoSize = ""

type LineKey struct {
	ProductID ProductID
	Size      string
}

// NewLineKey trims the id the same way product decoding does, so a padded
// id from a URL or a form finds its line.
func NewLineKey(id ProductID, size string) LineKey {
	return LineKey{ProductID: ProductID(strings.TrimSpace(string(id))), Size: size}
}

// CartLine keeps a copy of the product fields at the time it was added.
// Catalog price changes never reach lines already in a cart.
type CartLine struct {
	ProductID ProductID       `json:"id"`
	Size      string          `json:"size,omitempty"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

func (l CartLine) Key() LineKey { return NewLineKey(l.ProductID, l.Size) }

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	Lines []CartLine `json:"lines"`
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Find returns the index of the line with the given identity, or -1.
func (c Cart) Find(k LineKey) int {
	for i, l := range c.Lines {
		if l.Key() == k {
			return i
		}
	}
	return -1
}

func (c Cart) Clone() Cart {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return Cart{Lines: lines}
}

// FormatPrice rounds for display only; stored amounts keep full precision.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ScopedKey places key inside a namespace of a shared store.
func ScopedKey(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}
