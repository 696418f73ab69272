// Package export renders persisted invoices as PDF documents and XLSX
// installment schedules.
package export

import (
	"fmt"
	"io"
	"strings"

	"billing/internal/model"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
)

// Company identifies the issuer printed in the document header.
type Company struct {
	Name      string
	VATNumber string
}

// WriteInvoicePDF renders an A4 tax invoice with lines, totals, amount in
// words and the installment schedule when one exists.
func WriteInvoicePDF(w io.Writer, inv *model.Invoice, company Company) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.InvoiceNo, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 8, tr(company.Name))
	pdf.Ln(6)
	if company.VATNumber != "" {
		pdf.SetFont("Arial", "", 9)
		pdf.Cell(0, 5, "VAT No: "+company.VATNumber)
		pdf.Ln(4)
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 22)
	title := "TAX INVOICE"
	if inv.Status == model.InvoiceStatusVoid {
		title += " (VOID)"
	}
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(60, 6, "Invoice Number: "+inv.InvoiceNo)
	pdf.Cell(60, 6, "Issue Date: "+inv.IssueDate.Format("January 2, 2006"))
	pdf.Ln(6)
	pdf.Cell(60, 6, "Due Date: "+inv.DueDate.Format("January 2, 2006"))
	pdf.Cell(60, 6, "Currency: "+inv.Currency)
	pdf.Ln(12)

	// Bill to
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Bill To:")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	name := inv.ClientName
	if name == "" {
		name = inv.ClientID
	}
	pdf.Cell(0, 5, tr(name))
	pdf.Ln(5)
	if inv.ClientVATNumber != "" {
		pdf.Cell(0, 5, "VAT No: "+inv.ClientVATNumber)
		pdf.Ln(5)
	}
	pdf.Ln(8)

	// Lines
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(90, 8, "Description", "", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "", 0, "R", true, 0, "")
	pdf.CellFormat(30, 8, "Unit Price", "", 0, "R", true, 0, "")
	pdf.CellFormat(20, 8, "Disc.", "", 0, "R", true, 0, "")
	pdf.CellFormat(30, 8, "Amount", "", 1, "R", true, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	for _, item := range inv.Items {
		desc := tr(truncate(item.Description, 55))
		switch item.Type {
		case "comment":
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(190, 6, desc, "", 1, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			continue
		case "subtotal":
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(190, 6, desc, "", 1, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			continue
		}
		pdf.CellFormat(90, 6, desc, "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, item.Quantity.String(), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, item.UnitPrice.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, discountLabel(item.DiscountType, item.DiscountValue), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, item.LineTotal.StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	// Totals
	rows := []struct {
		label string
		value decimal.Decimal
	}{
		{"Subtotal", inv.Subtotal},
		{"Discounts", inv.TotalDiscount.Neg()},
		{"Taxable Amount", inv.TaxableAmount},
		{fmt.Sprintf("VAT (%s%%)", inv.VATRate.Mul(decimal.NewFromInt(100)).String()), inv.VATAmount},
		{"Total", inv.TotalAmount},
	}
	if inv.AppliedRetainer.IsPositive() {
		rows = append(rows, struct {
			label string
			value decimal.Decimal
		}{"Retainer Applied", inv.AppliedRetainer.Neg()})
	}
	if inv.AmountPaid.IsPositive() {
		rows = append(rows, struct {
			label string
			value decimal.Decimal
		}{"Paid", inv.AmountPaid.Neg()})
	}
	for _, r := range rows {
		pdf.SetX(110)
		pdf.CellFormat(50, 7, r.label+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, r.value.StringFixed(2)+" "+inv.Currency, "", 1, "R", false, 0, "")
	}

	pdf.SetFillColor(245, 245, 245)
	pdf.SetFont("Arial", "B", 12)
	pdf.SetX(110)
	pdf.CellFormat(50, 10, "Balance Due:", "", 0, "L", true, 0, "")
	pdf.SetTextColor(0, 100, 0)
	pdf.CellFormat(40, 10, inv.BalanceDue.StringFixed(2)+" "+inv.Currency, "", 1, "R", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	if inv.TotalInWords != "" {
		pdf.SetFont("Arial", "I", 9)
		pdf.MultiCell(0, 5, "Amount in words: "+tr(inv.TotalInWords), "", "L", false)
		pdf.Ln(4)
	}

	// Schedule
	if len(inv.Installments) > 0 {
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 8, "Payment Schedule")
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 10)
		for _, in := range inv.Installments {
			pdf.CellFormat(20, 6, fmt.Sprintf("#%d", in.Sequence), "", 0, "L", false, 0, "")
			pdf.CellFormat(50, 6, in.DueDate.Format("2006-01-02"), "", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, in.Amount.StringFixed(2)+" "+inv.Currency, "", 1, "R", false, 0, "")
		}
	}

	if inv.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "", 9)
		pdf.MultiCell(0, 5, tr(inv.Notes), "", "L", false)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to generate PDF: %w", err)
	}
	return nil
}

func discountLabel(discountType string, value decimal.Decimal) string {
	if value.IsZero() {
		return ""
	}
	if discountType == "percentage" {
		return value.String() + "%"
	}
	return value.StringFixed(2)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
