package procurement

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const registerSheet = "Purchase Orders"

var registerHeaders = []string{"Order ID", "Item", "Quantity", "Unit Cost", "Total Cost", "Status", "Supplier", "Project", "Requested By", "Requested At"}

// ExportRegister renders every order matching filters into a workbook.
// Callers must Close the returned file.
func (s *Service) ExportRegister(ctx context.Context, filters ListFilters) (*excelize.File, string, error) {
	if filters.Status != "" {
		if _, err := ParseStatus(string(filters.Status)); err != nil {
			return nil, "", err
		}
	}
	var orders []PurchaseOrder
	filters.Page, filters.PerPage = 1, 100
	for {
		page, total, err := s.repo.ListPurchaseOrders(ctx, filters)
		if err != nil {
			return nil, "", err
		}
		orders = append(orders, page...)
		if len(page) < filters.PerPage || len(orders) >= total {
			break
		}
		filters.Page++
	}

	f := excelize.NewFile()
	if err := writeRegister(f, orders); err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("procurement: build register: %w", err)
	}

	filename := fmt.Sprintf("purchase-orders-%s.xlsx", s.now().UTC().Format("20060102"))
	return f, filename, nil
}

func writeRegister(f *excelize.File, orders []PurchaseOrder) error {
	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return err
	}
	headers := make([]any, len(registerHeaders))
	for i, h := range registerHeaders {
		headers[i] = h
	}
	if err := writeRegisterRow(f, registerSheet, 1, headers); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(registerHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(registerSheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, po := range orders {
		err := writeRegisterRow(f, registerSheet, i+2, []any{
			po.ID.String(),
			po.ItemName,
			po.Quantity,
			po.UnitCost.InexactFloat64(),
			po.TotalCost.InexactFloat64(),
			string(po.Status),
			po.SupplierID.String(),
			po.ProjectID.String(),
			po.RequestedBy,
			po.RequestedAt.UTC().Format("2006-01-02 15:04"),
		})
		if err != nil {
			return err
		}
	}

	for _, w := range []struct {
		from, to string
		width    float64
	}{{"A", "A", 38}, {"B", "B", 30}, {"G", "H", 38}} {
		if err := f.SetColWidth(registerSheet, w.from, w.to, w.width); err != nil {
			return err
		}
	}
	return nil
}

// writeRegisterRow writes values left to right starting at column A of row.
func writeRegisterRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
