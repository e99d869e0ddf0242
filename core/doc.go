// Package core provides core types used throughout TableDB.
//
// The package defines the cell Value, Column and Row, the name-based
// ForeignKey, the TableSnapshot exchanged with persistence, and the error
// kinds returned by the engine.
//
// # Column Types
//
// Supported column types and their document type codes:
//   - IntType (0): 64-bit integers
//   - FloatType (1): 64-bit floating point numbers
//   - TextType (2): strings
//
// # Values
//
// Values are written through Coerce, which converts Go values to the kind
// declared by the column:
//
//	v, err := core.Coerce("42", core.IntType) // core.Int(42)
//	v, err = core.Coerce(nil, core.TextType)  // core.Text("")
//
// The zero value of each kind (0, 0.0, "") doubles as the null-like value
// that never violates a foreign key.
//
// # Errors
//
// Every engine failure is a *Error with one of the kinds SchemaError,
// RowError, ReferentialIntegrityError, CatalogError or TransactionError:
//
//	if errors.Is(err, core.ErrReferentialIntegrity) {
//	    // referenced value is missing
//	}
package core
