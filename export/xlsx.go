package export

import (
	"fmt"
	"io"

	"github.com/pevans/shelfwatch/product"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet WriteXLSX writes to.
const SheetName = "Products"

// WriteXLSX writes records as a single-sheet workbook with a bold, frozen
// header row. Numeric fields are stored as numbers; absent fields are left
// blank.
func WriteXLSX(w io.Writer, records []product.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, name := range Columns {
		header[i] = name
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := xlsxRow(rec)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// xlsxRow is cells with numeric columns converted so the spreadsheet can
// sort and sum them.
func xlsxRow(rec product.Record) []interface{} {
	text := cells(rec)
	row := make([]interface{}, len(text))
	for i, v := range text {
		row[i] = v
	}

	if rec.Price != nil {
		row[2] = rec.Price.InexactFloat64()
	}
	if rec.Rating != nil {
		row[3] = *rec.Rating
	}
	if rec.ReviewCount != nil {
		row[4] = *rec.ReviewCount
	}
	if rec.Seller != nil && rec.Seller.Rating != nil {
		row[9] = *rec.Seller.Rating
	}
	if rec.Seller != nil && rec.Seller.FeedbackCount != nil {
		row[10] = *rec.Seller.FeedbackCount
	}
	return row
}
