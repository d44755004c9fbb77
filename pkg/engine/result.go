package engine

import (
	"net/http"

	daverrors "github.com/marmos91/dittodav/pkg/errors"
)

// Outcome is the result of one visited node.
type Outcome struct {
	// Path is the href of the node as the client addressed it.
	Path    string
	Status  int
	Err     error
	Created bool
}

// Succeeded reports whether the node was mutated successfully.
func (o Outcome) Succeeded() bool {
	return o.Status >= 200 && o.Status < 300
}

func succeeded(path string, created bool) Outcome {
	status := http.StatusNoContent
	if created {
		status = http.StatusCreated
	}
	return Outcome{Path: path, Status: status, Created: created}
}

func failed(path string, err error) Outcome {
	return Outcome{Path: path, Status: daverrors.StatusOf(err), Err: err}
}

// Result is the aggregated status of an operation.
type Result struct {
	// Status is the HTTP status to send.
	Status int

	// Root is the outcome of the node the request addressed.
	Root Outcome

	// Failures lists failed non-root nodes for a 207 Multi-Status.
	Failures []Outcome

	// Nodes is the number of nodes visited.
	Nodes int

	// ETag is the new entity tag after a PUT, when one is known.
	ETag string
}

// Err returns the root failure, if any.
func (r Result) Err() error {
	if r.Root.Succeeded() {
		return nil
	}
	return r.Root.Err
}

// Aggregate maps per-node outcomes, root first, to one status.
//
// A failed root is reported directly. A successful root with failed members
// becomes 207 listing each failed member. Otherwise the root decides between
// 201 for a created resource and updatedStatus for a replaced one.
func Aggregate(outcomes []Outcome, updatedStatus int) Result {
	if len(outcomes) == 0 {
		return Result{Status: updatedStatus}
	}

	root := outcomes[0]
	res := Result{Root: root, Nodes: len(outcomes)}
	if !root.Succeeded() {
		res.Status = root.Status
		return res
	}

	for _, o := range outcomes[1:] {
		if !o.Succeeded() {
			res.Failures = append(res.Failures, o)
		}
	}
	switch {
	case len(res.Failures) > 0:
		res.Status = http.StatusMultiStatus
	case root.Created:
		res.Status = http.StatusCreated
	default:
		res.Status = updatedStatus
	}
	return res
}
