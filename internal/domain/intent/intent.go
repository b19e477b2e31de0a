// Package intent models list mutations extracted from chat text and their outcomes.
package intent

import (
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Operation is the kind of list mutation an intent requests.
type Operation string

// Supported operations.
const (
	AddOrSetStatus Operation = "add_or_set_status"
	Rate           Operation = "rate"
	ChangeRating   Operation = "change_rating"
	Remove         Operation = "remove"
)

// Intent is a structured instruction detected in one chat turn. Never persisted.
type Intent struct {
	Operation Operation
	// Status is set for AddOrSetStatus only.
	Status     list.Status
	Kind       title.Kind
	TitleQuery string
	// NumericArg is the raw captured number; clamping happens at execution.
	NumericArg *float64
	// Rule names the detector rule that produced the intent.
	Rule string
}

// Result is the outcome of executing one intent. Success is true only after the
// store mutation committed.
type Result struct {
	Operation Operation
	Rule      string
	Success   bool
	Message   string
	TitleID   *int64
	TitleName string
}

// Failed builds an unsuccessful result.
func Failed(in Intent, msg string) Result {
	return Result{Operation: in.Operation, Rule: in.Rule, Message: msg}
}

// Succeeded builds a successful result for a resolved title.
func Succeeded(in Intent, titleID int64, titleName, msg string) Result {
	id := titleID
	return Result{
		Operation: in.Operation,
		Rule:      in.Rule,
		Success:   true,
		Message:   msg,
		TitleID:   &id,
		TitleName: titleName,
	}
}
