package core

import (
	"fmt"
	"sort"
	"strings"
)

// TransformColumns names the columns the cleaning rules read and write.
type TransformColumns struct {
	OrderID     string `koanf:"order_id" json:"order_id"`
	ProductName string `koanf:"product_name" json:"product_name"`
	Quantity    string `koanf:"quantity" json:"quantity"`
	Price       string `koanf:"price" json:"price"`
	OrderDate   string `koanf:"order_date" json:"order_date"`
	TotalAmount string `koanf:"total_amount" json:"total_amount"`
}

// RangeRule bounds a numeric column, inclusive on both ends.
type RangeRule struct {
	Column string  `koanf:"column" json:"column"`
	Min    float64 `koanf:"min" json:"min"`
	Max    float64 `koanf:"max" json:"max"`
}

// Rules parameterizes the fixed transform and validation rule set.
// The rules themselves never change; only the columns and bounds they apply to.
type Rules struct {
	Columns         TransformColumns  `koanf:"columns" json:"columns"`
	ExpectedColumns []string          `koanf:"expected_columns" json:"expected_columns"`
	RequiredColumns []string          `koanf:"required_columns" json:"required_columns"`
	ExpectedTypes   map[string]string `koanf:"expected_types" json:"expected_types"`
	KeyColumn       string            `koanf:"key_column" json:"key_column"`
	Ranges          []RangeRule       `koanf:"ranges" json:"ranges"`
}

// DefaultRules returns the rule set for the sales dataset.
func DefaultRules() Rules {
	return Rules{
		Columns: TransformColumns{
			OrderID:     "order_id",
			ProductName: "product_name",
			Quantity:    "quantity",
			Price:       "price",
			OrderDate:   "order_date",
			TotalAmount: "total_amount",
		},
		ExpectedColumns: []string{
			"order_id", "customer_id", "product_name",
			"quantity", "price", "order_date", "region", "total_amount",
		},
		RequiredColumns: []string{"order_id", "customer_id", "product_name", "quantity", "price"},
		ExpectedTypes: map[string]string{
			"order_id":     "int",
			"price":        "float",
			"quantity":     "int",
			"total_amount": "float",
		},
		KeyColumn: "order_id",
		Ranges: []RangeRule{
			{Column: "price", Min: 0, Max: 10000},
			{Column: "quantity", Min: 1, Max: 100},
		},
	}
}

// CheckCount returns how many checks a full validation pass runs with these rules.
func (r Rules) CheckCount() int {
	// schema, row count, null, type, duplicate, accuracy + one per range
	return 6 + len(r.Ranges)
}

// Validate reports every problem with the rule set at once.
func (r Rules) Validate() error {
	var errs []string

	cols := map[string]string{
		"columns.order_id":     r.Columns.OrderID,
		"columns.product_name": r.Columns.ProductName,
		"columns.quantity":     r.Columns.Quantity,
		"columns.price":        r.Columns.Price,
		"columns.order_date":   r.Columns.OrderDate,
		"columns.total_amount": r.Columns.TotalAmount,
	}
	for _, key := range []string{
		"columns.order_id", "columns.product_name", "columns.quantity",
		"columns.price", "columns.order_date", "columns.total_amount",
	} {
		if strings.TrimSpace(cols[key]) == "" {
			errs = append(errs, key+" must not be empty")
		}
	}

	if len(r.ExpectedColumns) == 0 {
		errs = append(errs, "expected_columns must list at least one column")
	}
	if strings.TrimSpace(r.KeyColumn) == "" {
		errs = append(errs, "key_column must not be empty")
	}
	for _, col := range sortedKeys(r.ExpectedTypes) {
		if strings.TrimSpace(r.ExpectedTypes[col]) == "" {
			errs = append(errs, fmt.Sprintf("expected_types.%s must not be empty", col))
		}
	}
	for i, rr := range r.Ranges {
		if rr.Column == "" {
			errs = append(errs, fmt.Sprintf("ranges[%d].column must not be empty", i))
		}
		if rr.Min > rr.Max {
			errs = append(errs, fmt.Sprintf("ranges[%d] (%s): min %v is greater than max %v", i, rr.Column, rr.Min, rr.Max))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid rules:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// sortedKeys returns the map's keys in ascending order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
