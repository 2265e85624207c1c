package api

import (
	"github.com/fieldgate/fieldgate"
	"github.com/fieldgate/fieldgate/query"
	"github.com/fieldgate/fieldgate/schema"
)

// QueryRequest is the body for a data query.
type QueryRequest struct {
	Params *query.Params `json:"params,omitempty" description:"Declarative query description"`
}

// QueryResponse carries the permission-filtered result rows.
type QueryResponse struct {
	Rows  []query.Row `json:"rows"`
	Count int         `json:"count" description:"Number of rows returned"`
}

// CreateRequest is the body for creating rows. Data is the single-row
// form; Rows the batch form.
type CreateRequest struct {
	Data query.Row   `json:"data,omitempty" description:"Single row to insert"`
	Rows []query.Row `json:"rows,omitempty" description:"Batch of rows to insert"`
}

// CreateResponse carries the stored rows.
type CreateResponse struct {
	Rows []query.Row `json:"rows"`
}

// UpdateRequest is the body for a single-row update.
type UpdateRequest struct {
	Data     query.Row `json:"data" description:"Column values to set"`
	IDColumn string    `json:"idColumn,omitempty" description:"Primary key column (default id)"`
}

// UpdateResponse carries the updated row.
type UpdateResponse struct {
	Row query.Row `json:"row"`
}

// AdvanceUpdateRequest is the body for a predicate-based bulk update.
type AdvanceUpdateRequest struct {
	Params   *query.Params `json:"params" description:"Predicate selecting rows to update"`
	Data     query.Row     `json:"data" description:"Column values to set"`
	IDColumn string        `json:"idColumn,omitempty" description:"Primary key column (default id)"`
}

// AdvanceDeleteRequest is the body for a predicate-based bulk delete.
type AdvanceDeleteRequest struct {
	Params   *query.Params `json:"params" description:"Predicate selecting rows to delete"`
	IDColumn string        `json:"idColumn,omitempty" description:"Primary key column (default id)"`
}

// AdvanceDeleteResponse reports how many rows were removed.
type AdvanceDeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// CreateTableRequest is the body for creating a table.
type CreateTableRequest struct {
	Table       schema.TableDef             `json:"table" description:"Table definition"`
	Permissions *fieldgate.TablePermissions `json:"permissions,omitempty" description:"Initial permission document (defaults to private)"`
}

// ModifyTableRequest is the body for modifying a table.
type ModifyTableRequest struct {
	schema.Modification
}

// AddForeignKeyRequest is the body for adding a foreign key.
type AddForeignKeyRequest struct {
	schema.ForeignKeyDef
}

// TablesResponse lists table names.
type TablesResponse struct {
	Tables []string `json:"tables"`
}

// SetPermissionsRequest is the body for updating a table's permissions.
type SetPermissionsRequest struct {
	Permissions *fieldgate.TablePermissions `json:"permissions" description:"Full permission document"`
}

// StatusResponse is a minimal acknowledgment body.
type StatusResponse struct {
	Status string `json:"status"`
}

var okStatus = &StatusResponse{Status: "ok"}
