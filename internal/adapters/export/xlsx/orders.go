package xlsx

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/phenrril/rainydays/internal/domain"
)

const (
	OrdersSheet = "Orders"
	ItemsSheet  = "Items"
)

var (
	orderHeader = []any{"Order", "Date", "Delivery", "Name", "Email", "Phone", "Address", "Items", "Total"}
	itemHeader  = []any{"Order", "Product", "Title", "Size", "Quantity", "Price", "Subtotal"}
)

// WriteOrders writes the order history as a workbook with one row per order
// and one row per ordered line.
func WriteOrders(w io.Writer, orders []domain.OrderReceipt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", OrdersSheet); err != nil {
		return errors.Wrap(err, "rename sheet")
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return errors.Wrap(err, "create items sheet")
	}
	if err := f.SetSheetRow(OrdersSheet, "A1", &orderHeader); err != nil {
		return errors.Wrap(err, "orders header")
	}
	if err := f.SetSheetRow(ItemsSheet, "A1", &itemHeader); err != nil {
		return errors.Wrap(err, "items header")
	}

	itemRow := 2
	for i, o := range orders {
		count := 0
		for _, l := range o.Items {
			count += l.Quantity
		}
		row := []any{
			o.OrderID,
			o.OrderDate.Format("2006-01-02 15:04"),
			o.DeliveryLabel(),
			o.Name,
			o.Email,
			o.Phone,
			o.Address,
			count,
			o.Total.InexactFloat64(),
		}
		if err := f.SetSheetRow(OrdersSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return errors.Wrapf(err, "order row %s", o.OrderID)
		}
		for _, l := range o.Items {
			line := []any{
				o.OrderID,
				l.ProductID.String(),
				l.Title,
				l.Size,
				l.Quantity,
				l.Price.InexactFloat64(),
				l.Subtotal().InexactFloat64(),
			}
			if err := f.SetSheetRow(ItemsSheet, fmt.Sprintf("A%d", itemRow), &line); err != nil {
				return errors.Wrapf(err, "item row %s", o.OrderID)
			}
			itemRow++
		}
	}
	return errors.Wrap(f.Write(w), "write workbook")
}
