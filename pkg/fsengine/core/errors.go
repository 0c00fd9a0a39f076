package core

import "fmt"

// ItemError records the failure of one item of a batch.
type ItemError struct {
	Item PathWithType
	Code ErrorCode
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item.Path, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

// BatchError aggregates per-item failures of a multi-item call.
type BatchError struct {
	Failed    []*ItemError
	Succeeded int
}

func (e *BatchError) Error() string {
	if len(e.Failed) == 1 {
		return e.Failed[0].Error()
	}
	msg := fmt.Sprintf("%d of %d items failed", len(e.Failed), len(e.Failed)+e.Succeeded)
	for _, f := range e.Failed {
		msg += "\n  " + f.Error()
	}
	return msg
}

// Unwrap exposes every item cause to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}

// Code merges the codes of all failed items.
func (e *BatchError) Code() ErrorCode {
	var code ErrorCode
	for _, f := range e.Failed {
		code |= f.Code
	}
	return code
}
