package labelexport

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/parcelwalk/parcelwalk/internal/jobtypes"
)

var spreadsheetColumns = []string{
	"Parcel ID", "Alternate ID", "Owner Name",
	"Owner Street", "Owner City", "Owner State", "Owner Zip",
	"Situs Street", "Situs City", "Situs State", "Situs Zip",
	"Legal Description", "Transfer Date", "Instrument Or Book/Page", "Deed Code",
	"Document URL", "Document Local Path", "Outcome", "Error",
}

// WriteSpreadsheet writes the scraped tabular file that both the
// executor's every-10-parcels partial flush and the Label Export
// Pipeline's join step consume (spec.md §4.C.6, §4.F step 4).
func WriteSpreadsheet(records []*jobtypes.ScrapedRecord, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	for col, header := range spreadsheetColumns {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, rec := range records {
		values := []interface{}{
			rec.ParcelID, rec.AlternateID, rec.OwnerName,
			rec.OwnerAddress.Street, rec.OwnerAddress.City, rec.OwnerAddress.State, rec.OwnerAddress.Zip,
			rec.SitusAddress.Street, rec.SitusAddress.City, rec.SitusAddress.State, rec.SitusAddress.Zip,
			rec.LegalDescription, rec.Transfer.Date, rec.Transfer.InstrumentOrBookPage, rec.Transfer.DeedCode,
			rec.DocumentURL, rec.DocumentLocalPath, rec.Outcome.String(), rec.ErrorMsg,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("write spreadsheet %s: %w", path, err)
	}
	return nil
}

// ReadScrapedSpreadsheet reads a previously written spreadsheet back
// into rows for the join step, one ScrapedRow per data row in sheet
// order, carrying only the columns needed downstream.
func ReadScrapedSpreadsheet(path string) ([]ScrapedRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		idx[h] = i
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var out []ScrapedRow
	for _, row := range rows[1:] {
		out = append(out, ScrapedRow{
			ParcelID:             get(row, "Parcel ID"),
			AlternateID:          get(row, "Alternate ID"),
			OwnerName:            get(row, "Owner Name"),
			LegalDescription:     get(row, "Legal Description"),
			InstrumentOrBookPage: get(row, "Instrument Or Book/Page"),
		})
	}
	return out, nil
}

// ScrapedRow is the subset of spreadsheet columns the join step needs.
type ScrapedRow struct {
	ParcelID             string
	AlternateID          string
	OwnerName            string
	LegalDescription     string
	InstrumentOrBookPage string
}
