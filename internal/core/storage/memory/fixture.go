package memory

import (
	"fmt"
	"os"
	"strings"

	"github.com/aevon-lab/classgroup/internal/core/storage"
	"github.com/aevon-lab/classgroup/internal/core/value"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const defaultIDField = "OBJECTID"

// fixture is the on-disk YAML shape of a dataset.
type fixture struct {
	Name    string                   `yaml:"name"`
	IDField string                   `yaml:"id_field"`
	Fields  []fixtureField           `yaml:"fields"`
	Records []map[string]interface{} `yaml:"records"`
}

type fixtureField struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Length   int    `yaml:"length,omitempty"`
	Nullable *bool  `yaml:"nullable,omitempty"`
}

// Load reads a dataset from a YAML file. Records without an explicit id get
// the next free one.
func Load(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("read dataset file: %w", err)
	}
	return Parse(raw, path)
}

// Parse decodes a YAML dataset document. name is used when the document does
// not carry one.
func Parse(raw []byte, name string) (*Dataset, error) {
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse dataset yaml: %w", err)
	}

	if fx.Name == "" {
		fx.Name = name
	}
	if fx.IDField == "" {
		fx.IDField = defaultIDField
	}

	specs := make([]storage.FieldSpec, 0, len(fx.Fields))
	for _, f := range fx.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("dataset %q: field with empty name", fx.Name)
		}
		typ := storage.FieldType(strings.ToUpper(f.Type))
		switch typ {
		case storage.FieldTypeLong, storage.FieldTypeDouble, storage.FieldTypeText:
		default:
			return nil, fmt.Errorf("dataset %q: field %q has unsupported type %q", fx.Name, f.Name, f.Type)
		}
		nullable := true
		if f.Nullable != nil {
			nullable = *f.Nullable
		}
		specs = append(specs, storage.FieldSpec{Name: f.Name, Type: typ, Length: f.Length, Nullable: nullable})
	}

	ds := NewDataset(fx.Name, fx.IDField, specs)
	for i, rec := range fx.Records {
		values := make(map[string]value.Value, len(specs))
		for _, spec := range specs {
			v, err := decodeScalar(spec, rec[spec.Name])
			if err != nil {
				return nil, fmt.Errorf("dataset %q record %d: %w", fx.Name, i, err)
			}
			values[spec.Name] = v
		}

		id := ds.nextID
		if rawID, ok := rec[fx.IDField]; ok {
			n, ok := rawID.(int)
			if !ok {
				return nil, fmt.Errorf("dataset %q record %d: id must be an integer, got %v", fx.Name, i, rawID)
			}
			id = int64(n)
			if _, dup := ds.byID[id]; dup {
				return nil, fmt.Errorf("dataset %q record %d: duplicate id %d", fx.Name, i, id)
			}
		}
		ds.insertLocked(id, values)
	}

	return ds, nil
}

func decodeScalar(spec storage.FieldSpec, raw interface{}) (value.Value, error) {
	if raw == nil {
		return value.Null, nil
	}
	switch spec.Type {
	case storage.FieldTypeText:
		if s, ok := raw.(string); ok {
			return value.Text(s), nil
		}
		return value.Text(fmt.Sprint(raw)), nil
	default:
		switch n := raw.(type) {
		case int:
			return value.Int(int64(n)), nil
		case float64:
			if value.IsNonFinite(n) {
				return value.Value{}, fmt.Errorf("field %q: %v has no decimal form", spec.Name, n)
			}
			return value.Number(decimal.NewFromFloat(n)), nil
		case string:
			d, err := decimal.NewFromString(n)
			if err != nil {
				return value.Value{}, fmt.Errorf("field %q: %q is not a number", spec.Name, n)
			}
			return value.Number(d), nil
		}
		return value.Value{}, fmt.Errorf("field %q: unsupported value %v", spec.Name, raw)
	}
}

// Marshal encodes the dataset back into its YAML document form.
func (d *Dataset) Marshal() ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fx := fixture{Name: d.name, IDField: d.idField}
	for _, f := range d.fields {
		nullable := f.Nullable
		fx.Fields = append(fx.Fields, fixtureField{
			Name:     f.Name,
			Type:     string(f.Type),
			Length:   f.Length,
			Nullable: &nullable,
		})
	}
	for _, r := range d.rows {
		rec := map[string]interface{}{d.idField: r.id}
		for _, f := range d.fields {
			rec[f.Name] = encodeScalar(r.values[f.Name])
		}
		fx.Records = append(fx.Records, rec)
	}

	out, err := yaml.Marshal(&fx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset yaml: %w", err)
	}
	return out, nil
}

// Save writes the dataset to path, replacing the file.
func (d *Dataset) Save(path string) error {
	out, err := d.Marshal()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write dataset file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace dataset file: %w", err)
	}
	return nil
}

func encodeScalar(v value.Value) interface{} {
	switch v.Kind {
	case value.KindNumber:
		if v.Num.IsInteger() {
			return v.Num.IntPart()
		}
		// as a string, so no digits are lost to float64
		return v.Num.String()
	case value.KindText:
		return v.Str
	}
	return nil
}
