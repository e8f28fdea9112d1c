// Package core provides the cleaning and data-quality logic of the sales ETL.
//
// The package holds no I/O. Extraction, loading and orchestration live in
// their own packages and hand [Dataset] values to this one.
//
// # Datasets
//
// A [Dataset] is an ordered list of typed columns plus rows of [Value]. A Value
// with Valid set to false is the null marker; every conversion in this package
// maps input it cannot interpret to null instead of failing.
//
// # Transformer
//
// [Transformer.Transform] clones its input and applies the cleaning rules in a
// fixed order:
//
//  1. trim and title-case the product name
//  2. coerce price to float and quantity to integer, unparsable values to null
//  3. derive total_amount = quantity * price
//  4. parse order dates
//  5. drop rows repeating an earlier order_id
//
// A missing rule column or an unparsable non-empty date is a structural error
// ([ErrMissingColumn], [ErrUnparsableDate]) and aborts the transform.
//
// # Validator
//
// A [Validator] runs independent checks and records one [CheckResult] per
// call. Checks never fail with an error: a missing column or a bad value is a
// FAILED result, so every check in a run is always recorded.
//
//	v := core.NewValidator(core.WithColumns(rules.Columns))
//	v.SchemaValidation(ds, rules.ExpectedColumns)
//	v.NullCheck(ds, rules.RequiredColumns)
//	ok := v.GenerateReport()
//
// # Observers
//
// Both the Transformer and the Validator emit [Event] values to an [Observer]
// so callers can narrate progress without the core writing to a logger.
package core
