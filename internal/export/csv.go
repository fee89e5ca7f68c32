// Package export reads and writes the CSV boundary tables: labeled
// validation pairs in, scored pairs and family assignments out.
package export

import (
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/telco-insight/family-cli/internal/model"
)

// ReadLabeledPairs loads held-out validation pairs for threshold selection.
func ReadLabeledPairs(path string) ([]model.LabeledPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: read labeled pairs")
	}
	var pairs []model.LabeledPair
	if err := csvutil.Unmarshal(data, &pairs); err != nil {
		return nil, eris.Wrap(err, "export: parse labeled pairs")
	}
	return pairs, nil
}

// WriteScoredPairs writes the scored-pair table.
func WriteScoredPairs(path string, pairs []model.ScoredPair) error {
	return writeCSV(path, pairs)
}

// WriteFamilyMembers writes the family assignment table with key-person
// flags.
func WriteFamilyMembers(path string, members []model.FamilyMember) error {
	return writeCSV(path, members)
}

func writeCSV[T any](path string, rows []T) error {
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrapf(err, "export: marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", filepath.Base(path))
	}
	zap.L().Info("export: table written",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
	)
	return nil
}
