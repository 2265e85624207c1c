package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/fieldgate/fieldgate"
)

func (a *API) registerDataRoutes(router forge.Router) error {
	g := router.Group("/v1/data", forge.WithGroupTags("data"))

	if err := g.POST("/:table/query", a.queryTable,
		forge.WithSummary("Query rows"),
		forge.WithDescription("Runs a declarative query against the table; results are filtered by the table's SELECT rules."),
		forge.WithOperationID("queryTable"),
		forge.WithRequestSchema(QueryRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Result rows", QueryResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/:table", a.createRows,
		forge.WithSummary("Create rows"),
		forge.WithDescription("Inserts one row or a batch; candidate payloads are filtered by the table's INSERT rules."),
		forge.WithOperationID("createRows"),
		forge.WithRequestSchema(CreateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Stored rows", CreateResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/:table/:id", a.updateRow,
		forge.WithSummary("Update row"),
		forge.WithDescription("Updates one row by id, subject to the table's UPDATE rules."),
		forge.WithOperationID("updateRow"),
		forge.WithRequestSchema(UpdateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated row", UpdateResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/:table/:id", a.deleteRow,
		forge.WithSummary("Delete row"),
		forge.WithDescription("Deletes one row by id, subject to the table's DELETE rules."),
		forge.WithOperationID("deleteRow"),
		forge.WithResponseSchema(http.StatusOK, "Deleted", StatusResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/:table/update", a.advanceUpdate,
		forge.WithSummary("Bulk update"),
		forge.WithDescription("Updates all rows matching the predicate, narrowed to permission-surviving rows."),
		forge.WithOperationID("advanceUpdate"),
		forge.WithRequestSchema(AdvanceUpdateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated rows", CreateResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/:table/delete", a.advanceDelete,
		forge.WithSummary("Bulk delete"),
		forge.WithDescription("Deletes all rows matching the predicate, narrowed to permission-surviving rows."),
		forge.WithOperationID("advanceDelete"),
		forge.WithRequestSchema(AdvanceDeleteRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Delete count", AdvanceDeleteResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) queryTable(ctx forge.Context, req *QueryRequest) (*QueryResponse, error) {
	rows, err := a.db.Query(ctx.Context(), &fieldgate.QueryRequest{
		Table:  ctx.Param("table"),
		Params: req.Params,
		User:   a.resolveUser(ctx),
	})
	return respond(ctx, &QueryResponse{Rows: rows, Count: len(rows)}, err)
}

func (a *API) createRows(ctx forge.Context, req *CreateRequest) (*CreateResponse, error) {
	if req.Data == nil && len(req.Rows) == 0 {
		return nil, forge.BadRequest("data or rows is required")
	}
	rows, err := a.db.Create(ctx.Context(), &fieldgate.CreateRequest{
		Table: ctx.Param("table"),
		Data:  req.Data,
		Rows:  req.Rows,
		User:  a.resolveUser(ctx),
	})
	return respond(ctx, &CreateResponse{Rows: rows}, err)
}

func (a *API) updateRow(ctx forge.Context, req *UpdateRequest) (*UpdateResponse, error) {
	if len(req.Data) == 0 {
		return nil, forge.BadRequest("data is required")
	}
	row, err := a.db.Update(ctx.Context(), &fieldgate.UpdateRequest{
		Table:    ctx.Param("table"),
		ID:       ctx.Param("id"),
		IDColumn: req.IDColumn,
		Data:     req.Data,
		User:     a.resolveUser(ctx),
	})
	return respond(ctx, &UpdateResponse{Row: row}, err)
}

func (a *API) deleteRow(ctx forge.Context, _ *struct{}) (*StatusResponse, error) {
	err := a.db.Delete(ctx.Context(), &fieldgate.DeleteRequest{
		Table: ctx.Param("table"),
		ID:    ctx.Param("id"),
		User:  a.resolveUser(ctx),
	})
	return respond(ctx, okStatus, err)
}

func (a *API) advanceUpdate(ctx forge.Context, req *AdvanceUpdateRequest) (*CreateResponse, error) {
	if len(req.Data) == 0 {
		return nil, forge.BadRequest("data is required")
	}
	rows, err := a.db.AdvanceUpdate(ctx.Context(), &fieldgate.AdvanceUpdateRequest{
		Table:    ctx.Param("table"),
		Params:   req.Params,
		Data:     req.Data,
		IDColumn: req.IDColumn,
		User:     a.resolveUser(ctx),
	})
	return respond(ctx, &CreateResponse{Rows: rows}, err)
}

func (a *API) advanceDelete(ctx forge.Context, req *AdvanceDeleteRequest) (*AdvanceDeleteResponse, error) {
	deleted, err := a.db.AdvanceDelete(ctx.Context(), &fieldgate.AdvanceDeleteRequest{
		Table:    ctx.Param("table"),
		Params:   req.Params,
		IDColumn: req.IDColumn,
		User:     a.resolveUser(ctx),
	})
	return respond(ctx, &AdvanceDeleteResponse{Deleted: deleted}, err)
}
