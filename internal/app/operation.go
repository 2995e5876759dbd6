package app

import "strings"

// Operation tracks a CLI invocation. It lives in memory with ID=0; commands
// that mutate grants persist it as a maintenance run so the history command
// can show who changed what from the command line.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string // "running", "success", "partial" or "error"
}

// NewOperation creates an in-memory operation. args are joined into Parameters.
func NewOperation(operation string, args ...string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: strings.Join(args, " "),
		Status:     "success",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Fail marks the operation as failed. It returns err unchanged so callers
// can write `return op.Fail(err)`.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}
