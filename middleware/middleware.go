// Package middleware provides HTTP middleware for the fieldgate data layer.
package middleware

import (
	"encoding/json"
	"errors"

	"github.com/xraph/forge"

	"github.com/fieldgate/fieldgate"
)

// UserResolver builds a full UserContext for a request. Implementations
// typically look up the authenticated user's role, labels, and teams
// from their own identity store.
type UserResolver func(ctx forge.Context) (*fieldgate.UserContext, error)

// DefaultResolver synthesizes a minimal UserContext from the Forge user
// ID. Unauthenticated requests yield nil.
func DefaultResolver(ctx forge.Context) (*fieldgate.UserContext, error) {
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return &fieldgate.UserContext{UserID: userID}, nil
	}
	return nil, nil
}

// RequireOperation rejects requests whose user is not granted the given
// operation on the table named by the ":table" route parameter. The
// check is the row-free permission probe; row-dependent rules count as
// a pass here and are enforced per row by the data layer. A nil
// resolver falls back to DefaultResolver.
func RequireOperation(db *fieldgate.Database, op fieldgate.Operation, resolve UserResolver) forge.Middleware {
	if resolve == nil {
		resolve = DefaultResolver
	}
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			user, err := resolve(ctx)
			if err != nil {
				return errorResponse(ctx, 500, "user resolution failed")
			}
			if user == nil {
				return errorResponse(ctx, 401, "authentication required")
			}
			res := db.Evaluator().Enforce(ctx.Context(), &fieldgate.EnforceInput{
				Table:     ctx.Param("table"),
				Operation: op,
				User:      user,
				Source:    db.Permissions(),
				DB:        db.DB(),
			})
			if res.Status || res.HasFieldCheck || res.HasCustomFunction {
				return next(ctx)
			}
			return errorResponse(ctx, 403, res.Message)
		}
	}
}

// RequireAuth rejects requests with no authenticated user. A nil
// resolver falls back to DefaultResolver.
func RequireAuth(resolve UserResolver) forge.Middleware {
	if resolve == nil {
		resolve = DefaultResolver
	}
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			user, err := resolve(ctx)
			if err != nil {
				return errorResponse(ctx, 500, "user resolution failed")
			}
			if !user.Authenticated() {
				return errorResponse(ctx, 401, "authentication required")
			}
			return next(ctx)
		}
	}
}

// IsAuthError reports whether err is an authentication failure rather
// than an authorization one, for callers mapping errors to 401 vs 403.
func IsAuthError(err error) bool {
	return errors.Is(err, fieldgate.ErrAuthenticationRequired)
}

func errorResponse(ctx forge.Context, status int, msg string) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(status)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": msg})
}
