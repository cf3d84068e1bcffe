package gql

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/cppla/commentboard/services"
)

// Error codes reported in the "extensions" of a GraphQL error.
const (
	CodeNotFound = "NOT_FOUND"
	CodeInvalid  = "BAD_USER_INPUT"
	CodeInternal = "INTERNAL"
)

// FieldError is a resolver error carrying a machine readable code.
type FieldError struct {
	Message string
	Code    string
}

func (e *FieldError) Error() string { return e.Message }

// Extensions is picked up by graphql-go when formatting the error.
func (e *FieldError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

// fieldError converts an operation error into what the client sees.
// Store failures are logged here and never reach the client verbatim.
func (r *resolvers) fieldError(p graphql.ResolveParams, id string, err error) error {
	switch {
	case errors.Is(err, services.ErrCommentNotFound):
		return &FieldError{Message: fmt.Sprintf("comment %s not found", id), Code: CodeNotFound}
	case errors.Is(err, services.ErrInvalidVote):
		return &FieldError{Message: err.Error(), Code: CodeInvalid}
	default:
		r.log.Error("graphql resolver failed",
			zap.String("field", p.Info.FieldName),
			zap.String("id", id),
			zap.Error(err),
		)
		return &FieldError{Message: "internal server error", Code: CodeInternal}
	}
}
