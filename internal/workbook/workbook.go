// Package workbook reads the driving operations workbook (input rows and the
// fund-house lookup sheet) and writes ledger exports back out as XLSX.
package workbook

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/fundops/cnpipe/internal/config"
	"github.com/fundops/cnpipe/internal/model"
)

// ReadInput reads driving rows from the input sheet, skipping the header
// row. Rows with a blank key cell are returned too; classification is the
// resolver's job, and the summary should count them as skipped.
func ReadInput(path string, cfg config.WorkbookConfig) ([]model.InputRecord, error) {
	sheet, err := openSheet(path, cfg.InputSheet)
	if err != nil {
		return nil, err
	}

	var records []model.InputRecord
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		cells := rowToStrings(row)
		if rowEmpty(cells) {
			continue
		}
		records = append(records, model.InputRecord{
			Row:   i + 1,
			Key:   cellAt(cells, cfg.InputKeyColumn),
			Cells: cells,
		})
	}
	return records, nil
}

// ReadLookup loads the fund-house reference sheet: key, fund house, search
// term, and a run of credential columns per record.
func ReadLookup(path string, cfg config.WorkbookConfig) ([]model.LookupRecord, error) {
	sheet, err := openSheet(path, cfg.LookupSheet)
	if err != nil {
		return nil, err
	}

	var records []model.LookupRecord
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		cells := rowToStrings(row)

		key := strings.TrimSpace(cellAt(cells, cfg.LookupKeyColumn))
		if key == "" {
			continue
		}

		var creds []string
		for c := 0; c < cfg.LookupCredentialCount; c++ {
			if pw := cellAt(cells, cfg.LookupCredentialFirst+c); pw != "" {
				creds = append(creds, pw)
			}
		}

		records = append(records, model.LookupRecord{
			Key:         key,
			FundHouse:   cellAt(cells, cfg.LookupFundHouseColumn),
			SearchTerm:  cellAt(cells, cfg.LookupTermColumn),
			Credentials: creds,
		})
	}
	return records, nil
}

func openSheet(path, name string) (*xlsx.Sheet, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "workbook: open %s", path)
	}
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Errorf("workbook: sheet %q not found in %s", name, path)
	}
	return sheet, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

// cellAt returns the 1-based column value, or "" past the row's end.
func cellAt(cells []string, col int) string {
	if col < 1 || col > len(cells) {
		return ""
	}
	return cells[col-1]
}

func rowEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
