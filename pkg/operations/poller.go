// Package operations polls long-running vendor operations until they reach
// a terminal state. Vendors each spell their status vocabulary differently,
// so one parameterized state machine takes a fetch function and a status
// mapper instead of every client reimplementing a slightly different
// polling loop.
package operations

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"

	"github.com/vendorkit/vendorkit/pkg/api"
	"github.com/vendorkit/vendorkit/pkg/logger"
)

// Status is the canonical operation state. Transitions are monotonic
// toward a terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Failure reports whether s is a failure-terminal state. Cancelled
// operations count as failures: the vendor does not reliably distinguish
// user cancellation from vendor cancellation, so both stop polling and
// both raise.
func (s Status) Failure() bool {
	return s == StatusFailed || s == StatusCancelled
}

// Operation is the observed state of a remote long-running mutation. Error
// is populated only for failure-terminal statuses.
type Operation struct {
	ID     string       `json:"id"`
	Status Status       `json:"status"`
	Error  *RemoteError `json:"error,omitempty"`
}

// RemoteError is the vendor-reported failure payload.
type RemoteError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// FailedError means the operation reached a failure-terminal state. It is
// never retried automatically.
type FailedError struct {
	Operation Operation
}

func (e *FailedError) Error() string {
	msg := "no error detail supplied"
	if e.Operation.Error != nil {
		msg = e.Operation.Error.Message
		if e.Operation.Error.Code != "" {
			msg = e.Operation.Error.Code + ": " + msg
		}
	}
	return fmt.Sprintf("operation %s %s: %s", e.Operation.ID, e.Operation.Status, msg)
}

// TimeoutError means the wall-clock budget elapsed before the operation
// reached a terminal state. The operation may still complete later, so
// this is distinct from FailedError and callers may re-poll with a longer
// budget.
type TimeoutError struct {
	OperationID string
	Elapsed     time.Duration
	LastStatus  Status
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %s not terminal after %s (last status %q)",
		e.OperationID, e.Elapsed.Round(time.Millisecond), e.LastStatus)
}

// FetchFunc retrieves the current state of one operation.
type FetchFunc func(ctx context.Context, id string) (Operation, error)

// Poller drives one operation to a terminal state. Interval and Timeout
// are per-poller configuration so callers tune fast branch creation and
// slow provisioning independently.
type Poller struct {
	Fetch    FetchFunc
	Interval time.Duration
	Timeout  time.Duration
}

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 5 * time.Minute
)

type notTerminalError struct {
	status Status
}

func (e *notTerminalError) Error() string {
	return fmt.Sprintf("operation still %s", e.status)
}

// Wait polls until the operation is terminal, the budget elapses, or ctx
// is cancelled. A success-terminal operation is returned; failure-terminal
// raises FailedError and a spent budget raises TimeoutError. Fetch errors
// propagate unwrapped after the first occurrence; the poller never retries
// a failed fetch.
func (p *Poller) Wait(ctx context.Context, id string) (Operation, error) {
	if p.Fetch == nil {
		return Operation{}, errors.New("poller has no fetch function")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var last Operation

	err := retry.Do(
		func() error {
			op, err := p.Fetch(pollCtx, id)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			last = op
			if op.Status.Failure() {
				return retry.Unrecoverable(&FailedError{Operation: op})
			}
			if op.Status.Terminal() {
				return nil
			}
			logger.G(ctx).WithFields(map[string]any{
				"operation": id,
				"status":    op.Status,
			}).Debug("operation not yet terminal")
			return &notTerminalError{status: op.Status}
		},
		retry.Context(pollCtx),
		retry.Attempts(0),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return last, nil
	}

	var failed *FailedError
	if errors.As(err, &failed) {
		return last, err
	}
	if ctx.Err() != nil {
		// Caller cancellation wins over the poll budget.
		return last, ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return last, &TimeoutError{
			OperationID: id,
			Elapsed:     time.Since(start),
			LastStatus:  last.Status,
		}
	}
	return last, errors.Wrapf(err, "failed to poll operation %s", id)
}

// StatusMapper translates one vendor's status vocabulary onto the
// canonical enum.
type StatusMapper map[string]Status

// Map returns the canonical status for a vendor status string. Unmapped
// statuses are treated as still-running so polling continues until the
// budget decides.
func (m StatusMapper) Map(vendorStatus string) Status {
	if mapped, ok := m[vendorStatus]; ok {
		return mapped
	}
	return StatusRunning
}

// DefaultStatusMapper covers the spellings seen across vendors.
var DefaultStatusMapper = StatusMapper{
	"pending":     StatusPending,
	"queued":      StatusPending,
	"scheduling":  StatusPending,
	"running":     StatusRunning,
	"in_progress": StatusRunning,
	"finished":    StatusFinished,
	"completed":   StatusFinished,
	"succeeded":   StatusSucceeded,
	"success":     StatusSucceeded,
	"failed":      StatusFailed,
	"error":       StatusFailed,
	"cancelled":   StatusCancelled,
	"canceled":    StatusCancelled,
}

type wireOperation struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Error  *RemoteError `json:"error,omitempty"`
}

// FetchVia builds a FetchFunc that polls GET {basePath}/{id} through the
// request executor, mapping the vendor's status spelling with mapper.
func FetchVia(client *api.Client, basePath string, mapper StatusMapper) FetchFunc {
	if mapper == nil {
		mapper = DefaultStatusMapper
	}
	return func(ctx context.Context, id string) (Operation, error) {
		resp, err := client.Execute(ctx, http.MethodGet, basePath+"/"+id, nil)
		if err != nil {
			return Operation{}, err
		}
		var wire wireOperation
		if err := resp.Decode(&wire); err != nil {
			return Operation{}, err
		}
		op := Operation{ID: wire.ID, Status: mapper.Map(wire.Status), Error: wire.Error}
		if op.ID == "" {
			op.ID = id
		}
		return op, nil
	}
}
