package modules

import (
	"encoding/json"
	"errors"
	"net/http"

	"swapescrow/core"
	"swapescrow/core/types"
	"swapescrow/native/common"
	"swapescrow/native/escrow"
	"swapescrow/native/token"
)

const (
	codeInvalidParams = -32602
	codeServerError   = -32000

	CodeNotFound          = -32022
	CodeForbidden         = -32023
	CodeConflict          = -32024
	CodeModulePaused      = -32025
	CodeCustodyViolation  = -32026
	CodeInsufficientFunds = -32027
)

type ModuleError struct {
	HTTPStatus int
	Code       int
	Message    string
	Data       interface{}
}

func (e *ModuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidParams(message string, data interface{}) *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message, Data: data}
}

// decodeParams expects exactly one parameter object.
func decodeParams(params []json.RawMessage, out interface{}) *ModuleError {
	if len(params) != 1 {
		return invalidParams("exactly one parameter object expected", nil)
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(field, raw string) (types.Address, *ModuleError) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		return types.ZeroAddress, invalidParams("invalid "+field, err.Error())
	}
	return addr, nil
}

// FromError maps ledger and program errors onto JSON-RPC error codes.
func FromError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	wrap := func(status, code int) *ModuleError {
		return &ModuleError{HTTPStatus: status, Code: code, Message: err.Error()}
	}
	switch {
	case errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, token.ErrAssetNotFound),
		errors.Is(err, token.ErrHoldingNotFound):
		return wrap(http.StatusNotFound, CodeNotFound)
	case errors.Is(err, escrow.ErrUnauthorized),
		errors.Is(err, token.ErrUnauthorized),
		errors.Is(err, core.ErrInvalidSignature),
		errors.Is(err, types.ErrMissingSignature):
		return wrap(http.StatusForbidden, CodeForbidden)
	case errors.Is(err, core.ErrTxConflict),
		errors.Is(err, core.ErrBadNonce),
		errors.Is(err, escrow.ErrAlreadyExists),
		errors.Is(err, token.ErrAssetExists),
		errors.Is(err, token.ErrHoldingExists):
		return wrap(http.StatusConflict, CodeConflict)
	case errors.Is(err, common.ErrModulePaused):
		return wrap(http.StatusServiceUnavailable, CodeModulePaused)
	case errors.Is(err, escrow.ErrVaultAndEscrowInvalidAmount):
		return wrap(http.StatusInternalServerError, CodeCustodyViolation)
	case errors.Is(err, token.ErrInsufficientBalance):
		return wrap(http.StatusBadRequest, CodeInsufficientFunds)
	case errors.Is(err, core.ErrWrongChain),
		errors.Is(err, core.ErrUnknownTxType),
		errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidAmount),
		errors.Is(err, token.ErrInvalidSymbol),
		errors.Is(err, token.ErrAssetMismatch),
		errors.Is(err, token.ErrOverflow),
		errors.Is(err, token.ErrNonZeroBalance):
		return wrap(http.StatusBadRequest, codeInvalidParams)
	default:
		return wrap(http.StatusInternalServerError, codeServerError)
	}
}
