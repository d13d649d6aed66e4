// Package repository defines the data access layer and the error types
// shared by several repositories.  These sentinel values allow higher
// layers such as services to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"encoding/json"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrConflict is returned when an update cannot be performed because
// of the current state of the row, such as moving a request that has
// already been approved or denied.
var ErrConflict = errors.New("conflict")

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// encodeJSON marshals a slice for a JSON column.  Nil slices are stored
// as NULL.
func encodeJSON[T any](v []T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// decodeJSON unmarshals a JSON column.  NULL yields a nil slice.
func decodeJSON[T any](raw []byte) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
