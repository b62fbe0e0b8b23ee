package service

import (
	"time"

	dErrors "regcore/pkg/domain-errors"
)

// ResultCode is the protocol-level outcome of a command, following the
// EPP result-code space so registrar tooling can reuse its handling.
type ResultCode int

const (
	ResultSuccess        ResultCode = 1000
	ResultSuccessPending ResultCode = 1001
	ResultNotAuthorized  ResultCode = 2201
	ResultObjectExists   ResultCode = 2302
	ResultObjectNotFound ResultCode = 2303
	ResultStatusProhibit ResultCode = 2304
	ResultPolicyError    ResultCode = 2306
	ResultCommandFailed  ResultCode = 2400
)

// Outcome is the protocol half of every successful command result.
type Outcome struct {
	Code    ResultCode `json:"code"`
	Message string     `json:"message"`
}

func succeeded() Outcome {
	return Outcome{Code: ResultSuccess, Message: "command completed successfully"}
}

func pendingAction() Outcome {
	return Outcome{Code: ResultSuccessPending, Message: "command completed successfully; action pending"}
}

// ResultCodeOf maps a command error to its protocol result code.
func ResultCodeOf(err error) ResultCode {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeBadRequest:
		return ResultPolicyError
	case dErrors.CodeDenied:
		return ResultNotAuthorized
	case dErrors.CodeNotFound:
		return ResultObjectNotFound
	case dErrors.CodeConflict:
		return ResultStatusProhibit
	default:
		return ResultCommandFailed
	}
}

// CreateCommand registers a new domain for the authenticated registrar.
type CreateCommand struct {
	Name  string `json:"name"`
	Years int    `json:"years"`
}

// CreateResult reports a successful registration.
type CreateResult struct {
	Outcome        Outcome   `json:"outcome"`
	RepoID         string    `json:"repoId"`
	Name           string    `json:"name"`
	ExpirationTime time.Time `json:"expirationTime"`
}

// RenewCommand extends a registration. CurrentExpiration, when set, must
// match the stored expiration so two racing renewals cannot both win.
type RenewCommand struct {
	Name              string    `json:"name"`
	Years             int       `json:"years"`
	CurrentExpiration time.Time `json:"currentExpiration"`
}

// RenewResult reports the new expiration.
type RenewResult struct {
	Outcome        Outcome   `json:"outcome"`
	Name           string    `json:"name"`
	ExpirationTime time.Time `json:"expirationTime"`
}

// DeleteCommand removes a domain from service.
type DeleteCommand struct {
	Name string `json:"name"`
}

// DeleteResult reports how the delete was applied.
type DeleteResult struct {
	Outcome Outcome `json:"outcome"`
	Name    string  `json:"name"`
	// Immediate is true when the delete happened inside the add grace
	// period and the name is available again at once.
	Immediate    bool      `json:"immediate"`
	DeletionTime time.Time `json:"deletionTime"`
}

// RestoreCommand recovers a domain from its redemption window.
type RestoreCommand struct {
	Name string `json:"name"`
}

// RestoreResult reports the post-restore expiration.
type RestoreResult struct {
	Outcome        Outcome   `json:"outcome"`
	Name           string    `json:"name"`
	ExpirationTime time.Time `json:"expirationTime"`
}

// TransferRequestCommand opens a transfer to the authenticated registrar.
type TransferRequestCommand struct {
	Name string `json:"name"`
}

// TransferDecisionCommand answers a pending transfer request.
type TransferDecisionCommand struct {
	Name    string `json:"name"`
	Approve bool   `json:"approve"`
}

// TransferResult reports the transfer state after the command.
type TransferResult struct {
	Outcome            Outcome    `json:"outcome"`
	Name               string     `json:"name"`
	GainingRegistrarID string     `json:"gainingRegistrarId,omitempty"`
	LosingRegistrarID  string     `json:"losingRegistrarId,omitempty"`
	ExpirationTime     *time.Time `json:"expirationTime,omitempty"`
}

// CheckResult answers availability for one name.
type CheckResult struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
