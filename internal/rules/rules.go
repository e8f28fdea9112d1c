// Package rules loads the validation rule parameters from an optional YAML file.
//
// The file may set any of the top-level sections of core.Rules. A section
// present in the file replaces the default section entirely; sections the file
// omits keep their defaults. Within the columns section, keys override one by one.
package rules

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/JonMunkholm/salesetl/internal/core"
)

// replaced lists the sections that a file replaces rather than merges into.
var replaced = []string{"expected_columns", "required_columns", "expected_types", "key_column", "ranges"}

// Load returns the default rules overlaid with the file at path.
// An empty path returns the defaults.
func Load(path string) (core.Rules, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults(core.DefaultRules()), "."), nil); err != nil {
		return core.Rules{}, fmt.Errorf("load default rules: %w", err)
	}

	if path != "" {
		fk := koanf.New(".")
		if err := fk.Load(file.Provider(path), yaml.Parser()); err != nil {
			return core.Rules{}, fmt.Errorf("load rules file %s: %w", path, err)
		}
		for _, key := range replaced {
			if fk.Exists(key) {
				k.Delete(key)
			}
		}
		if err := k.Merge(fk); err != nil {
			return core.Rules{}, fmt.Errorf("merge rules file %s: %w", path, err)
		}
	}

	var r core.Rules
	if err := k.Unmarshal("", &r); err != nil {
		return core.Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	if err := r.Validate(); err != nil {
		return core.Rules{}, err
	}
	return r, nil
}

// defaults flattens r into the key space the rules file uses.
func defaults(r core.Rules) map[string]interface{} {
	types := make(map[string]interface{}, len(r.ExpectedTypes))
	for col, kind := range r.ExpectedTypes {
		types[col] = kind
	}
	ranges := make([]interface{}, len(r.Ranges))
	for i, rr := range r.Ranges {
		ranges[i] = map[string]interface{}{"column": rr.Column, "min": rr.Min, "max": rr.Max}
	}

	return map[string]interface{}{
		"columns.order_id":     r.Columns.OrderID,
		"columns.product_name": r.Columns.ProductName,
		"columns.quantity":     r.Columns.Quantity,
		"columns.price":        r.Columns.Price,
		"columns.order_date":   r.Columns.OrderDate,
		"columns.total_amount": r.Columns.TotalAmount,
		"expected_columns":     r.ExpectedColumns,
		"required_columns":     r.RequiredColumns,
		"expected_types":       types,
		"key_column":           r.KeyColumn,
		"ranges":               ranges,
	}
}
