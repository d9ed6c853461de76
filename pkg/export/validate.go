package export

import (
	"rowexport/pkg/dataset"
	"rowexport/pkg/model"
)

// Validate checks that ds can be written to m. An empty dataset is always
// valid. The first failing check is returned as a *ValidationError:
//
//   - every field without a default must be a column or an index level;
//   - the first value of each present date or datetime field must not be a
//     string (only the first row is sampled);
//   - non-nullable fields without a default must have no missing values.
func Validate(ds *dataset.Dataset, m *model.Model) error {
	if ds == nil {
		return ErrNilDataset
	}
	if ds.Len() == 0 {
		return nil
	}
	if err := checkColumns(ds, m); err != nil {
		return err
	}
	if err := checkDates(ds, m); err != nil {
		return err
	}
	return checkNulls(ds, m)
}

func checkColumns(ds *dataset.Dataset, m *model.Model) error {
	for _, f := range m.Fields {
		if f.Name == m.IdentityName() || f.HasDefault() {
			continue
		}
		if !present(ds, f.Name) {
			return &ValidationError{Field: f.Name, Err: ErrMissingColumn}
		}
	}
	return nil
}

func checkDates(ds *dataset.Dataset, m *model.Model) error {
	for _, f := range m.Fields {
		if !f.Type.IsTemporal() || f.Name == m.IdentityName() {
			continue
		}
		vals, ok := fieldValues(ds, f.Name)
		if !ok || len(vals) == 0 {
			continue
		}
		switch vals[0].(type) {
		case string, []byte:
			return &ValidationError{Field: f.Name, Err: ErrDateStoredAsText}
		}
	}
	return nil
}

func checkNulls(ds *dataset.Dataset, m *model.Model) error {
	for _, f := range m.Fields {
		if f.Null || f.HasDefault() || f.Name == m.IdentityName() {
			continue
		}
		vals, ok := fieldValues(ds, f.Name)
		if !ok {
			continue
		}
		for _, v := range vals {
			if dataset.IsMissing(v) {
				return &ValidationError{Field: f.Name, Err: ErrUnexpectedNull}
			}
		}
	}
	return nil
}

func present(ds *dataset.Dataset, name string) bool {
	return ds.HasColumn(name) || ds.HasIndexLevel(name)
}

// fieldValues reads a field from a column, falling back to an index level.
func fieldValues(ds *dataset.Dataset, name string) ([]any, bool) {
	if col, ok := ds.Column(name); ok {
		return col, true
	}
	if ds.HasIndexLevel(name) {
		vals, err := ds.IndexLevelValues(name)
		return vals, err == nil
	}
	return nil, false
}
