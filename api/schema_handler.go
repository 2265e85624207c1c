package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/schema"
)

func (a *API) registerSchemaRoutes(router forge.Router) error {
	g := router.Group("/v1/schema", forge.WithGroupTags("schema"))

	if err := g.GET("/tables", a.listTables,
		forge.WithSummary("List tables"),
		forge.WithDescription("Lists user tables, excluding reserved ones."),
		forge.WithOperationID("listTables"),
		forge.WithResponseSchema(http.StatusOK, "Table names", TablesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/tables/:table", a.getTableSchema,
		forge.WithSummary("Get table schema"),
		forge.WithDescription("Returns the table's columns, primary keys, and foreign keys."),
		forge.WithOperationID("getTableSchema"),
		forge.WithResponseSchema(http.StatusOK, "Table schema", &schema.TableInfo{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/tables/:table/full", a.getTableSchemaWithPermissions,
		forge.WithSummary("Get table schema with permissions"),
		forge.WithDescription("Returns the table schema merged with its permission document."),
		forge.WithOperationID("getTableSchemaWithPermissions"),
		forge.WithResponseSchema(http.StatusOK, "Schema and permissions", &fieldgate.TableSchemaWithPermissions{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/tables", a.createTable,
		forge.WithSummary("Create table"),
		forge.WithDescription("Creates a table and writes its permission document in one transaction."),
		forge.WithOperationID("createTable"),
		forge.WithRequestSchema(CreateTableRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Created", StatusResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/tables/:table", a.dropTable,
		forge.WithSummary("Drop table"),
		forge.WithDescription("Drops a table and removes its permission document."),
		forge.WithOperationID("dropTable"),
		forge.WithResponseSchema(http.StatusOK, "Dropped", StatusResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PATCH("/tables/:table", a.modifyTable,
		forge.WithSummary("Modify table"),
		forge.WithDescription("Adds, drops, or renames columns."),
		forge.WithOperationID("modifyTable"),
		forge.WithRequestSchema(ModifyTableRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Modified", StatusResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/tables/:table/foreign-keys", a.addForeignKey,
		forge.WithSummary("Add foreign key"),
		forge.WithDescription("Adds a foreign key constraint (Postgres only)."),
		forge.WithOperationID("addForeignKey"),
		forge.WithRequestSchema(AddForeignKeyRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Added", StatusResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/tables/:table/foreign-keys/:constraint", a.dropForeignKey,
		forge.WithSummary("Drop foreign key"),
		forge.WithDescription("Drops a named foreign key constraint (Postgres only)."),
		forge.WithOperationID("dropForeignKey"),
		forge.WithResponseSchema(http.StatusOK, "Dropped", StatusResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/tables/:table/truncate", a.truncateTable,
		forge.WithSummary("Truncate table"),
		forge.WithDescription("Removes all rows from the table."),
		forge.WithOperationID("truncateTable"),
		forge.WithResponseSchema(http.StatusOK, "Truncated", StatusResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listTables(ctx forge.Context, _ *struct{}) (*TablesResponse, error) {
	tables, err := a.db.Tables(ctx.Context(), nil)
	return respond(ctx, &TablesResponse{Tables: tables}, err)
}

func (a *API) getTableSchema(ctx forge.Context, _ *struct{}) (*schema.TableInfo, error) {
	info, err := a.db.TableSchema(ctx.Context(), ctx.Param("table"), nil)
	return respond(ctx, info, err)
}

func (a *API) getTableSchemaWithPermissions(ctx forge.Context, _ *struct{}) (*fieldgate.TableSchemaWithPermissions, error) {
	out, err := a.db.TableSchemaWithPermissions(ctx.Context(), ctx.Param("table"), nil)
	return respond(ctx, out, err)
}

func (a *API) createTable(ctx forge.Context, req *CreateTableRequest) (*StatusResponse, error) {
	if req.Table.Name == "" || len(req.Table.Columns) == 0 {
		return nil, forge.BadRequest("table name and columns are required")
	}
	err := a.db.CreateTable(ctx.Context(), &req.Table, req.Permissions, nil)
	return respond(ctx, okStatus, err)
}

func (a *API) dropTable(ctx forge.Context, _ *struct{}) (*StatusResponse, error) {
	err := a.db.DropTable(ctx.Context(), ctx.Param("table"), nil)
	return respond(ctx, okStatus, err)
}

func (a *API) modifyTable(ctx forge.Context, req *ModifyTableRequest) (*StatusResponse, error) {
	err := a.db.ModifyTable(ctx.Context(), ctx.Param("table"), &req.Modification, nil)
	return respond(ctx, okStatus, err)
}

func (a *API) addForeignKey(ctx forge.Context, req *AddForeignKeyRequest) (*StatusResponse, error) {
	if req.Column == "" || req.RefTable == "" || req.RefColumn == "" {
		return nil, forge.BadRequest("column, refTable, and refColumn are required")
	}
	err := a.db.AddForeignKey(ctx.Context(), ctx.Param("table"), &req.ForeignKeyDef, nil)
	return respond(ctx, okStatus, err)
}

func (a *API) dropForeignKey(ctx forge.Context, _ *struct{}) (*StatusResponse, error) {
	err := a.db.DropForeignKey(ctx.Context(), ctx.Param("table"), ctx.Param("constraint"), nil)
	return respond(ctx, okStatus, err)
}

func (a *API) truncateTable(ctx forge.Context, _ *struct{}) (*StatusResponse, error) {
	err := a.db.TruncateTable(ctx.Context(), ctx.Param("table"), nil)
	return respond(ctx, okStatus, err)
}
