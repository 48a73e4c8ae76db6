package invoice

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"core/internal/catalog"
)

// renderPDF renders a one-page invoice from the order loaded with its
// products eagerly resolved (spec.md §4.9 step 3).
func renderPDF(order *catalog.Order) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Invoice "+order.ID, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Date: "+order.CreatedAt.Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Customer: "+order.CustomerName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Email: "+order.CustomerEmail, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Address: "+order.Address, "", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(80, 7, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 7, "Qty", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Unit price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, "Subtotal", "1", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, item := range order.Items {
		name := item.SKU
		if item.Product != nil {
			name = item.Product.Name
		}
		subtotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		pdf.CellFormat(80, 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, item.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 7, subtotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(140, 8, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, order.TotalAmount.StringFixed(2), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("invoice: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
