package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/fieldgate/fieldgate"
)

func (a *API) registerPermissionRoutes(router forge.Router) error {
	g := router.Group("/v1/permissions", forge.WithGroupTags("permissions"))

	if err := g.GET("/:table", a.getPermissions,
		forge.WithSummary("Get table permissions"),
		forge.WithDescription("Returns the table's permission document."),
		forge.WithOperationID("getPermissions"),
		forge.WithResponseSchema(http.StatusOK, "Permission document", &fieldgate.TablePermissions{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/:table", a.setPermissions,
		forge.WithSummary("Set table permissions"),
		forge.WithDescription("Replaces the table's permission document. The cache reflects the write before the call returns."),
		forge.WithOperationID("setPermissions"),
		forge.WithRequestSchema(SetPermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Stored document", &fieldgate.TablePermissions{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.DELETE("/:table", a.deletePermissions,
		forge.WithSummary("Delete table permissions"),
		forge.WithDescription("Removes the table's permission document; the table then denies everything."),
		forge.WithOperationID("deletePermissions"),
		forge.WithResponseSchema(http.StatusOK, "Deleted", StatusResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getPermissions(ctx forge.Context, _ *struct{}) (*fieldgate.TablePermissions, error) {
	perms, err := a.db.GetPermissions(ctx.Context(), ctx.Param("table"), nil)
	return respond(ctx, perms, err)
}

func (a *API) setPermissions(ctx forge.Context, req *SetPermissionsRequest) (*fieldgate.TablePermissions, error) {
	if req.Permissions == nil {
		return nil, forge.BadRequest("permissions is required")
	}
	stored, err := a.db.SetPermissions(ctx.Context(), ctx.Param("table"), req.Permissions, nil)
	return respond(ctx, stored, err)
}

func (a *API) deletePermissions(ctx forge.Context, _ *struct{}) (*StatusResponse, error) {
	err := a.db.DeletePermissions(ctx.Context(), ctx.Param("table"), nil)
	return respond(ctx, okStatus, err)
}
