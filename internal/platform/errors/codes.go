// Package errors provides structured error handling with machine-readable codes.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Party errors
	CodePartyNotFound           Code = "PARTY_NOT_FOUND"
	CodePartyNotMember          Code = "PARTY_NOT_MEMBER"
	CodePartyNotInvited         Code = "PARTY_NOT_INVITED"
	CodePartyInvalidAction      Code = "PARTY_INVALID_ACTION"
	CodePartyItemRequired       Code = "PARTY_LIBRARY_ITEM_REQUIRED"
	CodePartyKickTargetRequired Code = "PARTY_KICK_TARGET_REQUIRED"
	CodePartyInviteesRequired   Code = "PARTY_INVITEES_REQUIRED"
	CodeInvalidRequestBody      Code = "INVALID_REQUEST_BODY"

	// Catalog errors
	CodeLibraryItemNotFound     Code = "LIBRARY_ITEM_NOT_FOUND"
	CodeUserNotFound            Code = "USER_NOT_FOUND"
	CodeLibraryItemAccessDenied Code = "LIBRARY_ITEM_ACCESS_DENIED"

	// Auth errors
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// GRPCCode maps domain codes to the canonical gRPC status taxonomy.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodePartyInvalidAction,
		CodePartyItemRequired,
		CodePartyKickTargetRequired,
		CodePartyInviteesRequired,
		CodeInvalidRequestBody:
		return codes.InvalidArgument

	// NotFound - missing entities
	case CodePartyNotFound,
		CodeLibraryItemNotFound,
		CodeUserNotFound:
		return codes.NotFound

	// PermissionDenied - caller lacks membership or item access
	case CodePartyNotMember,
		CodePartyNotInvited,
		CodeLibraryItemAccessDenied:
		return codes.PermissionDenied

	// Unauthenticated - missing or invalid credentials
	case CodeUnauthenticated:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to transport-level HTTP statuses via the gRPC
// taxonomy.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
