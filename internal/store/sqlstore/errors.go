package sqlstore

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/twiced-technology-gmbh/housekeep/internal/store"
)

// transientPGCodes are postgres error codes outside class 08 that clear
// once the server is back.
var transientPGCodes = map[pq.ErrorCode]bool{
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
	"53300": true, // too_many_connections
}

// wrap converts a driver error into a *store.Error with the transient flag
// set from driver metadata.
func wrap(op string, id int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.NotFound(op, id)
	}
	var se *store.Error
	if errors.As(err, &se) {
		return err
	}
	return &store.Error{Op: op, ID: id, Transient: isTransient(err), Err: err}
}

func isTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08" || transientPGCodes[pqErr.Code]
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
			return true
		}
		return false
	}
	return store.Classify(err)
}
