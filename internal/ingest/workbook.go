// Package ingest reads the call-detail workbook and derives the subscriber
// table and directed call edges the resolution engine consumes.
package ingest

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// CallRecord is one raw call-detail row after cell normalization. String ids
// are empty when absent; numeric attributes are NaN when absent.
type CallRecord struct {
	SubsID        string
	CallSubsID    string
	BaseStationID string
	CallDate      time.Time // zero when absent

	PayAcctID    string
	BuildingID   string
	ShareGroupID string
	FamilyNetID  string

	BirthDay *time.Time
	ARPU     float64
	DOU      float64
	MOU      float64

	// Raw yes/no flag cells keyed by column name (every *_flag column except
	// the multi-valued sharing status). Normalized to booleans during
	// subscriber derivation.
	Flags map[string]string

	SharingStatus string
	FamilyID      string // ground-truth family id on labeled sheets, if any
}

// fixed columns recognized by name; every other *_flag column is collected
// as a raw flag.
const (
	colSubsID        = "subs_id"
	colCallSubsID    = "call_subs_id"
	colBaseStation   = "base_station_id"
	colCallDate      = "call_date"
	colPayAcct       = "pay_acct_id"
	colBuilding      = "building_id"
	colShareGroup    = "share_group_id"
	colFamilyNet     = "family_net_id"
	colBirthDay      = "birth_day"
	colARPU          = "arpu"
	colDOU           = "dou"
	colMOU           = "mou"
	colSharingStatus = "sharing_status_flag"
	colFamilyID      = "family_id"
)

// SheetNames lists the sheets of a workbook in file order.
func SheetNames(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open workbook")
	}
	names := make([]string, len(f.Sheets))
	for i, s := range f.Sheets {
		names[i] = s.Name
	}
	return names, nil
}

// ReadSheet reads one sheet of the workbook into normalized call records.
// The first row is the column header; a repeated header row at the top of
// the data is skipped.
func ReadSheet(path, sheetName string) ([]CallRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open workbook")
	}

	sheet, ok := f.Sheet[sheetName]
	if !ok {
		return nil, eris.Errorf("ingest: sheet %q not found", sheetName)
	}
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	header := rowToStrings(sheet.Rows[0])
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := cols[colSubsID]; !ok {
		return nil, eris.Errorf("ingest: sheet %q has no %s column", sheetName, colSubsID)
	}

	var records []CallRecord
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(cells) {
				return ""
			}
			return cells[i]
		}

		subsID := NormalizeID(get(colSubsID))
		if subsID == "" || subsID == colSubsID {
			// Blank row or a repeated header row inside the data.
			continue
		}

		rec := CallRecord{
			SubsID:        subsID,
			CallSubsID:    NormalizeID(get(colCallSubsID)),
			BaseStationID: NormalizeID(get(colBaseStation)),
			PayAcctID:     NormalizeID(get(colPayAcct)),
			BuildingID:    NormalizeID(get(colBuilding)),
			ShareGroupID:  NormalizeID(get(colShareGroup)),
			FamilyNetID:   NormalizeID(get(colFamilyNet)),
			ARPU:          ParseFloat(get(colARPU)),
			DOU:           ParseFloat(get(colDOU)),
			MOU:           ParseFloat(get(colMOU)),
			SharingStatus: strings.TrimSpace(get(colSharingStatus)),
			FamilyID:      NormalizeID(get(colFamilyID)),
			Flags:         map[string]string{},
		}
		if d, ok := ParseDate(get(colCallDate)); ok {
			rec.CallDate = d
		}
		if d, ok := ParseDate(get(colBirthDay)); ok {
			rec.BirthDay = &d
		}
		for name, i := range cols {
			if !strings.HasSuffix(name, "_flag") || name == colSharingStatus {
				continue
			}
			if i < len(cells) && strings.TrimSpace(cells[i]) != "" {
				rec.Flags[name] = cells[i]
			}
		}
		records = append(records, rec)
	}

	zap.L().Info("ingest: sheet read",
		zap.String("sheet", sheetName),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
