package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xraph/forge"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/query"
)

// mapError maps domain errors to Forge HTTP errors. Authentication
// failures are handled separately (unauthorized) because they need a
// 401 rather than a 403.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, query.ErrInvalidParams) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, fieldgate.ErrExcludedTable) || errors.Is(err, fieldgate.ErrPermissionDenied) {
		return forge.Forbidden(err.Error())
	}
	if errors.Is(err, fieldgate.ErrTableNotFound) ||
		errors.Is(err, fieldgate.ErrRowNotFound) ||
		errors.Is(err, fieldgate.ErrNoPermissions) {
		return forge.NotFound(err.Error())
	}
	return err
}

// unauthorized writes a 401 response directly; forge has no helper for
// this status.
func unauthorized(ctx forge.Context, err error) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(http.StatusUnauthorized)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": err.Error()})
}

// respond maps the error if any, handling the 401 case, otherwise
// serializes v.
func respond[T any](ctx forge.Context, v T, err error) (T, error) {
	var zero T
	if err != nil {
		if errors.Is(err, fieldgate.ErrAuthenticationRequired) {
			return zero, unauthorized(ctx, err)
		}
		return zero, mapError(err)
	}
	return v, ctx.JSON(http.StatusOK, v)
}

// resolveUser extracts the requesting user: the configured resolver
// first, then any identity attached by fieldgate.WithUser, then a
// minimal context synthesized from the Forge user ID.
func (a *API) resolveUser(ctx forge.Context) *fieldgate.UserContext {
	if a.resolver != nil {
		return a.resolver(ctx)
	}
	if user := fieldgate.UserFromContext(ctx.Context()); user != nil {
		return user
	}
	if userID := forge.UserIDFromContext(ctx.Context()); userID != "" {
		return &fieldgate.UserContext{UserID: userID}
	}
	return nil
}
