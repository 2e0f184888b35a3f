package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicate    = errors.New("record already exists")
	ErrReadOnly     = errors.New("write in read-only transaction")
	ErrWrongSession = errors.New("record outside transaction session")
)
