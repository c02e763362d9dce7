package orm

import "errors"

// Errors returned by the orm package.
//
// Engine failures are wrapped beneath the matching sentinel, so both the
// failure kind and the engine detail are available to callers:
//
//	if errors.Is(err, orm.ErrInsertionFailed) {
//	    // the batch was rolled back; err.Error() carries the engine message
//	}
var (
	// ErrInvalidType is returned when a field's storage kind cannot be determined.
	ErrInvalidType = errors.New("orm: invalid field type")

	// ErrNotStruct is returned when a record type is not a struct or pointer to struct.
	ErrNotStruct = errors.New("orm: record type is not a struct")

	// ErrMultiplePrimaryKeys is returned when more than one column is marked primary key.
	ErrMultiplePrimaryKeys = errors.New("orm: multiple primary keys")

	// ErrInvalidIdentifier is returned when a table or column name is not a plain identifier.
	ErrInvalidIdentifier = errors.New("orm: invalid identifier")

	// ErrEncodingFailed is returned when a record value cannot be converted to a bind value.
	ErrEncodingFailed = errors.New("orm: encoding failed")

	// ErrDecodingFailed is returned when a stored row cannot be assigned to a record.
	ErrDecodingFailed = errors.New("orm: decoding failed")

	// ErrTableCreationFailed is returned when the engine rejects CREATE TABLE.
	ErrTableCreationFailed = errors.New("orm: table creation failed")

	// ErrInsertionFailed is returned when the engine rejects an insert batch.
	ErrInsertionFailed = errors.New("orm: insertion failed")

	// ErrQueryFailed is returned when the engine rejects a SELECT.
	ErrQueryFailed = errors.New("orm: query failed")

	// ErrDeleteFailed is returned when the engine rejects a DELETE.
	ErrDeleteFailed = errors.New("orm: delete failed")

	// ErrInvalidOptions is returned by Open for unusable options.
	ErrInvalidOptions = errors.New("orm: invalid options")

	// ErrUnknownCodec is returned by CodecByName for an unregistered name.
	ErrUnknownCodec = errors.New("orm: unknown codec")
)
