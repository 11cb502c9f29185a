package storage

import "errors"

var (
	errClosed      = errors.New("storage is closed")
	errDuplicateID = errors.New("record with this id already exists")
)
