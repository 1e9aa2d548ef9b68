package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrDuplicateTransaction = errors.New("transaction already persisted")
)

// Pipeline stages that can fail during analysis.
const (
	StageHistory         = "history"
	StageSaveTransaction = "save_transaction"
	StageSaveAlert       = "save_alert"
)

// StageError is returned when a storage call made during analysis fails.
type StageError struct {
	Stage string
	TxID  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for transaction %s: %v", e.Stage, e.TxID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
