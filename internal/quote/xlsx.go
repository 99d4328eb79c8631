package quote

import (
	"fmt"
	"io"
	"strings"

	"github.com/fixturedesk/leaddesk/internal/models"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const quotationSheet = "Quotation"

// WriteXLSX renders the quotation as a spreadsheet document.
func WriteXLSX(w io.Writer, q models.Quotation, siteName string) error {
	f := excelize.NewFile()
	defer func() {
		if errClose := f.Close(); errClose != nil {
			log.WithError(errClose).Warn("quote xlsx: close workbook failed")
		}
	}()

	if errRename := f.SetSheetName("Sheet1", quotationSheet); errRename != nil {
		return fmt.Errorf("quote xlsx: rename sheet: %w", errRename)
	}

	bold, errStyle := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if errStyle != nil {
		return fmt.Errorf("quote xlsx: style: %w", errStyle)
	}

	title := strings.TrimSpace(siteName)
	if title == "" {
		title = "Quotation"
	}
	header := [][2]any{
		{title, ""},
		{"Quotation", q.Number},
		{"Client", q.ClientName},
		{"Date", q.CreatedAt.Format("2006-01-02")},
		{"Currency", q.Currency},
		{"Status", string(q.Status)},
	}
	row := 1
	for _, pair := range header {
		if err := setRow(f, row, pair[0], pair[1]); err != nil {
			return err
		}
		row++
	}
	row++

	itemsHeader := row
	if err := setRow(f, row, "#", "Description", "Quantity", "Unit price", "Line total"); err != nil {
		return err
	}
	row++
	for i, item := range q.Items {
		if err := setRow(f, row, i+1, item.Description, amountCell(item.Quantity), amountCell(item.UnitPrice), amountCell(item.LineTotal)); err != nil {
			return err
		}
		row++
	}
	row++

	totalsStart := row
	totals := [][2]any{
		{"Subtotal", amountCell(q.Subtotal)},
		{fmt.Sprintf("Discount (%s%%)", q.DiscountPercent), amountCell(q.Discount)},
		{fmt.Sprintf("Tax (%s%%)", q.TaxPercent), amountCell(q.Tax)},
		{"Total", amountCell(q.Total)},
	}
	for _, pair := range totals {
		if err := setRowAt(f, row, "D", pair[0], pair[1]); err != nil {
			return err
		}
		row++
	}
	if notes := strings.TrimSpace(q.Notes); notes != "" {
		row++
		if err := setRow(f, row, "Notes", notes); err != nil {
			return err
		}
	}

	for _, cellRange := range [][2]string{
		{"A1", "A1"},
		{fmt.Sprintf("A%d", itemsHeader), fmt.Sprintf("E%d", itemsHeader)},
		{fmt.Sprintf("D%d", totalsStart+3), fmt.Sprintf("E%d", totalsStart+3)},
	} {
		if err := f.SetCellStyle(quotationSheet, cellRange[0], cellRange[1], bold); err != nil {
			return fmt.Errorf("quote xlsx: apply style: %w", err)
		}
	}
	if err := f.SetColWidth(quotationSheet, "B", "B", 40); err != nil {
		return fmt.Errorf("quote xlsx: column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("quote xlsx: write: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values ...any) error {
	return setRowAt(f, row, "A", values...)
}

func setRowAt(f *excelize.File, row int, startCol string, values ...any) error {
	cell, err := excelize.JoinCellName(startCol, row)
	if err != nil {
		return fmt.Errorf("quote xlsx: cell name: %w", err)
	}
	if errSet := f.SetSheetRow(quotationSheet, cell, &values); errSet != nil {
		return fmt.Errorf("quote xlsx: row %d: %w", row, errSet)
	}
	return nil
}

// amountCell writes stored decimal strings as numbers when they parse.
func amountCell(raw string) any {
	value, err := ParseAmount(raw)
	if err != nil {
		return raw
	}
	f, _ := value.Float64()
	return f
}
