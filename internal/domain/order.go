package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DeliveryDateLayout = "January 2, 2006"

// OrderReceipt is one entry of the order history. The order was never sent
// anywhere; placing it only clears the cart and records this receipt.
type OrderReceipt struct {
	CustomerInfo
	OrderID      string          `json:"orderId"`
	Items        []CartLine      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	OrderDate    time.Time       `json:"orderDate"`
	DeliveryDate time.Time       `json:"deliveryDate"`
}

func (o OrderReceipt) DeliveryLabel() string {
	return o.DeliveryDate.Format(DeliveryDateLayout)
}
