package quotations

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/shared"
)

const exportSheet = "Quotations"

var exportColumns = []struct {
	title string
	width float64
	value func(q Quotation, now time.Time) any
}{
	{"Quotation", 14, func(q Quotation, _ time.Time) any { return q.ID }},
	{"Created", 18, func(q Quotation, _ time.Time) any { return q.CreatedAt.Format("2006-01-02 15:04") }},
	{"Customer", 24, func(q Quotation, _ time.Time) any {
		if q.Customer == nil {
			return ""
		}
		return q.Customer.FullName()
	}},
	{"Mobile", 14, func(q Quotation, _ time.Time) any {
		if q.Customer == nil {
			return ""
		}
		return q.Customer.Mobile
	}},
	{"System", 12, func(q Quotation, _ time.Time) any { return string(q.Products.SystemType) }},
	{"Status", 12, func(q Quotation, _ time.Time) any { return string(q.Status) }},
	{"Subtotal", 14, func(q Quotation, _ time.Time) any { return q.Subtotal }},
	{"Total Subsidy", 14, func(q Quotation, _ time.Time) any { return q.TotalSubsidy }},
	{"Discount %", 11, func(q Quotation, _ time.Time) any { return q.Discount }},
	{"Final Amount", 14, func(q Quotation, _ time.Time) any { return q.FinalAmount }},
	{"Total Amount", 14, func(q Quotation, _ time.Time) any { return q.TotalAmount }},
	{"Dealer", 38, func(q Quotation, _ time.Time) any { return q.DealerID }},
	{"Valid Until", 14, func(q Quotation, now time.Time) any {
		if q.Expired(now) {
			return q.ValidUntil.Format("2006-01-02") + " (expired)"
		}
		return q.ValidUntil.Format("2006-01-02")
	}},
}

// ExportApproved returns every approved quotation matching filter,
// unpaginated.
func (s *Service) ExportApproved(ctx context.Context, actor shared.Principal, filter ListQuotationsRequest) ([]Quotation, error) {
	if !actor.Is(shared.RoleAdmin, shared.RoleAccountManager) {
		return nil, httpx.NewError(httpx.CodeForbidden, "export is limited to account management")
	}
	filter.Status = QuotationStatusApproved
	filter.Limit, filter.Offset = 0, 0
	quotations, _, err := s.repo.List(ctx, filter)
	return quotations, err
}

// WriteWorkbook renders quotations as a single-sheet xlsx document.
func WriteWorkbook(w io.Writer, quotations []Quotation, now time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#2F6B3A"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	for col, c := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(exportSheet, cell, c.title); err != nil {
			return err
		}
		name, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(exportSheet, name, name, c.width); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for row, q := range quotations {
		for col, c := range exportColumns {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(exportSheet, cell, c.value(q, now)); err != nil {
				return err
			}
		}
	}
	if len(quotations) > 0 {
		from, _ := excelize.CoordinatesToCellName(7, 2)
		to, _ := excelize.CoordinatesToCellName(11, len(quotations)+1)
		if err := f.SetCellStyle(exportSheet, from, to, amountStyle); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
