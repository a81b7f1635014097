package workbook

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/fundops/cnpipe/internal/model"
)

// exportHeader mirrors the legacy CN database column layout: identity and
// provenance first, the twelve extracted fields, then outcome columns.
var exportHeader = []string{
	"ID",
	"File Path",
	"Source Key",
	"Is it a CN?",
	"Operation Type",
	"Is it a Multiseries?",
	"Currency",
	"Gross Amount",
	"Net Amount",
	"Units",
	"Equalization",
	"Fees",
	"NAV price",
	"NAV date",
	"Settlement Date",
	"Status",
	"Failure",
	"Truncated",
}

// Export writes ledger entries into a fresh workbook with a single sheet
// shaped like the legacy CN database.
func Export(path, sheetName string, entries []model.LedgerEntry) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "workbook: add sheet %q", sheetName)
	}

	header := sheet.AddRow()
	for _, h := range exportHeader {
		header.AddCell().Value = h
	}

	for _, e := range entries {
		row := sheet.AddRow()
		row.AddCell().Value = strconv.FormatInt(e.ID, 10)
		row.AddCell().Value = e.ArtifactPath
		row.AddCell().Value = e.SourceKey

		fields := e.Fields
		if fields == nil {
			fields = &model.CNFields{}
		}
		for _, v := range fields.Values() {
			row.AddCell().Value = v
		}

		row.AddCell().Value = string(e.Status)
		row.AddCell().Value = string(e.Failure)
		row.AddCell().Value = strconv.FormatBool(e.Truncated)
	}

	return eris.Wrapf(f.Save(path), "workbook: save %s", path)
}
