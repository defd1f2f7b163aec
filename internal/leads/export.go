package leads

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{
	"ID",
	"FRN",
	"Company Name",
	"Contact Email",
	"Contact Phone",
	"Service Type",
	"Website",
	"Pipeline Status",
	"Assigned Employee ID",
	"Created At",
	"Updated At",
}

// ExportRecords renders the header and one row per lead ordered by created_at, id.
// Absent optional fields render as empty strings.
func ExportRecords(all []Lead) [][]string {
	sorted := make([]Lead, len(all))
	copy(sorted, all)
	sortByCreated(sorted)

	out := make([][]string, 0, len(sorted)+1)
	out = append(out, append([]string(nil), exportHeader...))
	for _, l := range sorted {
		out = append(out, []string{
			l.ID,
			l.FRN,
			l.CompanyName,
			deref(l.ContactEmail),
			deref(l.ContactPhone),
			deref(l.ServiceType),
			deref(l.Website),
			string(l.PipelineStatus),
			deref(l.AssignedEmployeeID),
			FormatTimestamp(l.CreatedAt),
			FormatTimestamp(l.UpdatedAt),
		})
	}
	return out
}

func WriteCSV(w io.Writer, all []Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(ExportRecords(all)); err != nil {
		return fmt.Errorf("write csv export: %w", err)
	}
	return nil
}

const exportSheet = "Leads"

// WriteXLSX writes the same table as WriteCSV into a single-sheet workbook.
// Every cell is a string so values survive without spreadsheet coercion.
func WriteXLSX(w io.Writer, all []Lead) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return fmt.Errorf("xlsx stream writer: %w", err)
	}

	for i, rec := range ExportRecords(all) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("xlsx row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("xlsx flush: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}
