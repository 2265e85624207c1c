package fieldgate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldgate/fieldgate/dialect"
	"github.com/fieldgate/fieldgate/hook"
	"github.com/fieldgate/fieldgate/query"
	"github.com/fieldgate/fieldgate/schema"
)

// Database is the enforcement orchestrator: it wraps the permission
// evaluator around generic CRUD and schema operations. Every operation
// runs the same state machine (excluded-table check, bypass for system
// requests or disabled enforcement, authentication check, row-free
// permission probe, then fetch-and-filter only when row-dependent rules
// require it) before executing through the hook pipeline.
//
// Safe for concurrent use.
type Database struct {
	db          *sql.DB
	dialectTag  dialect.Dialect
	adapter     dialect.Adapter
	translator  *query.Translator
	funcs       *FuncRegistry
	evaluator   *Evaluator
	store       PermissionStore
	schema      *schema.Manager
	hooks       *hook.Pipeline
	broadcaster Broadcaster
	logger      *slog.Logger
	cfg         Config

	pendingHooks []hook.Hook
}

// NewDatabase creates the orchestrator. WithDB and WithPermissions are
// required; everything else has defaults.
func NewDatabase(opts ...Option) (*Database, error) {
	d := &Database{
		dialectTag: dialect.Postgres,
		logger:     slog.Default(),
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.db == nil {
		return nil, errors.New("fieldgate: database handle is required")
	}
	if d.store == nil {
		return nil, errors.New("fieldgate: permission store is required")
	}
	adapter, err := dialect.New(d.dialectTag)
	if err != nil {
		return nil, err
	}
	d.adapter = adapter
	d.translator = query.NewTranslator(adapter)
	if d.funcs == nil {
		d.funcs = NewFuncRegistry(d.logger)
	}
	d.evaluator = NewEvaluator(d.funcs, d.logger)
	d.schema = schema.NewManager(adapter, d.logger)
	d.hooks = hook.NewPipeline(d.logger)
	for _, h := range d.pendingHooks {
		d.hooks.Register(h)
	}
	d.pendingHooks = nil
	return d, nil
}

// Evaluator returns the permission evaluator, for collaborators that
// run rule checks outside the CRUD path (realtime subscription gates).
func (d *Database) Evaluator() *Evaluator { return d.evaluator }

// DB returns the underlying handle, for collaborators that evaluate
// customSql rules outside the CRUD path.
func (d *Database) DB() *sql.DB { return d.db }

// Funcs returns the custom rule-function registry.
func (d *Database) Funcs() *FuncRegistry { return d.funcs }

// Permissions returns the permission store.
func (d *Database) Permissions() PermissionStore { return d.store }

// Hooks returns the query/mutation hook pipeline.
func (d *Database) Hooks() *hook.Pipeline { return d.hooks }

// Config returns the active configuration.
func (d *Database) Config() Config { return d.cfg }

// Dialect returns the configured dialect tag.
func (d *Database) Dialect() dialect.Dialect { return d.dialectTag }

// SetBroadcaster installs the post-mutation broadcaster. Realtime hubs
// need the Database to gate subscriptions, so they are wired after
// construction.
func (d *Database) SetBroadcaster(b Broadcaster) { d.broadcaster = b }

type migrator interface {
	Migrate(ctx context.Context) error
}

// Migrate creates the permission metadata table if the store supports
// migration.
func (d *Database) Migrate(ctx context.Context) error {
	if m, ok := d.store.(migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}

func (d *Database) handle(tx *sql.Tx) query.Querier {
	if tx != nil {
		return tx
	}
	return d.db
}

// authorize runs the shared pre-execution state machine and returns the
// permission probe when row-dependent filtering is still pending. A nil
// result with a nil error means the request bypassed enforcement.
func (d *Database) authorize(ctx context.Context, table string, op Operation, user *UserContext, isSystem bool, h query.Querier) (*EnforcementResult, error) {
	if d.cfg.excluded(table) {
		return nil, fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	if !d.cfg.rlsEnabled() || isSystem {
		return nil, nil
	}
	if user == nil {
		return nil, fmt.Errorf("%w: operation %s on table %s", ErrAuthenticationRequired, op, table)
	}
	res := d.evaluator.Enforce(ctx, &EnforceInput{
		Table:     table,
		Operation: op,
		User:      user,
		Source:    d.store,
		DB:        h,
		ChunkSize: d.cfg.chunkSize(),
	})
	if res.Status || res.HasFieldCheck || res.HasCustomFunction {
		return res, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, res.Message)
}

// filterRows applies the probe's carried row-dependent rules to fetched
// rows. Field-check rules take the fast path; custom-function rules go
// back through the full enforcement call with the rows attached.
func (d *Database) filterRows(ctx context.Context, probe *EnforcementResult, table string, op Operation, user *UserContext, rows []query.Row, h query.Querier) []query.Row {
	if len(probe.FieldCheckRules) > 0 {
		size := d.cfg.chunkSize()
		filtered := make([]query.Row, 0, len(rows))
		for start := 0; start < len(rows); start += size {
			end := min(start+size, len(rows))
			for _, row := range rows[start:end] {
				if d.evaluator.EvaluateFieldChecks(ctx, probe.FieldCheckRules, user, row) {
					filtered = append(filtered, row)
				}
			}
		}
		return filtered
	}
	res := d.evaluator.Enforce(ctx, &EnforceInput{
		Table:     table,
		Operation: op,
		User:      user,
		Source:    d.store,
		Rows:      rows,
		DB:        h,
		ChunkSize: d.cfg.chunkSize(),
	})
	if res.Rows == nil {
		return []query.Row{}
	}
	return res.Rows
}

func (d *Database) rowAllowed(ctx context.Context, probe *EnforcementResult, table string, op Operation, user *UserContext, row query.Row, h query.Querier) bool {
	if len(probe.FieldCheckRules) > 0 {
		return d.evaluator.EvaluateFieldChecks(ctx, probe.FieldCheckRules, user, row)
	}
	res := d.evaluator.Enforce(ctx, &EnforceInput{
		Table:     table,
		Operation: op,
		User:      user,
		Source:    d.store,
		Row:       row,
		DB:        h,
	})
	return res.Status
}

// QueryRequest describes one read.
type QueryRequest struct {
	Table    string
	Params   *query.Params
	User     *UserContext
	IsSystem bool
	Tx       *sql.Tx
}

// Query runs a permission-filtered read. When row-dependent rules apply
// the full candidate set is fetched and filtered; the surviving rows are
// returned even when the set is empty.
func (d *Database) Query(ctx context.Context, req *QueryRequest) ([]query.Row, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	h := d.handle(req.Tx)
	probe, err := d.authorize(ctx, req.Table, OpSelect, req.User, req.IsSystem, h)
	if err != nil {
		return nil, err
	}
	rows, err := d.runQuery(ctx, h, req.Table, req.Params)
	if err != nil {
		return nil, err
	}
	if probe == nil || probe.Status {
		return rows, nil
	}
	return d.filterRows(ctx, probe, req.Table, OpSelect, req.User, rows, h), nil
}

// CreateRequest describes one insert. Data is the single-row form; Rows
// the batch form. Exactly one should be set.
type CreateRequest struct {
	Table    string
	Data     query.Row
	Rows     []query.Row
	User     *UserContext
	IsSystem bool
	Tx       *sql.Tx
}

// Create inserts candidate rows after filtering the payloads themselves
// against row-dependent rules: there is no stored row yet, so the check
// is "may this user insert a row with these field values". An empty
// surviving set denies.
func (d *Database) Create(ctx context.Context, req *CreateRequest) ([]query.Row, error) {
	candidates := req.Rows
	if req.Data != nil {
		candidates = []query.Row{req.Data}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: create requires data", query.ErrInvalidParams)
	}

	h := d.handle(req.Tx)
	probe, err := d.authorize(ctx, req.Table, OpInsert, req.User, req.IsSystem, h)
	if err != nil {
		return nil, err
	}
	if probe != nil && !probe.Status {
		candidates = d.filterRows(ctx, probe, req.Table, OpInsert, req.User, candidates, h)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: operation %s on table %s", ErrPermissionDenied, OpInsert, req.Table)
		}
	}

	sqlStr, args, err := d.translator.Insert(req.Table, candidates)
	if err != nil {
		return nil, err
	}
	rows, _, err := d.runMutation(ctx, h, req.Table, string(OpInsert), sqlStr, args, true)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = candidates
	}
	d.broadcast(ctx, req.Table, EventCreate, rows)
	return rows, nil
}

// UpdateRequest describes one single-row update, addressed by primary
// key. IDColumn defaults to "id".
type UpdateRequest struct {
	Table    string
	ID       any
	IDColumn string
	Data     query.Row
	User     *UserContext
	IsSystem bool
	Tx       *sql.Tx
}

func (r *UpdateRequest) idColumn() string {
	if r.IDColumn != "" {
		return r.IDColumn
	}
	return "id"
}

// Update updates one row by id. Row-dependent rules are checked against
// the current stored row before the write runs.
func (d *Database) Update(ctx context.Context, req *UpdateRequest) (query.Row, error) {
	h := d.handle(req.Tx)
	probe, err := d.authorize(ctx, req.Table, OpUpdate, req.User, req.IsSystem, h)
	if err != nil {
		return nil, err
	}
	p := &query.Params{Filter: map[string]any{req.idColumn(): req.ID}}

	if probe != nil && !probe.Status {
		current, err := d.fetchOne(ctx, h, req.Table, p)
		if err != nil {
			return nil, err
		}
		if !d.rowAllowed(ctx, probe, req.Table, OpUpdate, req.User, current, h) {
			return nil, fmt.Errorf("%w: operation %s on table %s", ErrPermissionDenied, OpUpdate, req.Table)
		}
	}

	sqlStr, args, err := d.translator.Update(req.Table, req.Data, p)
	if err != nil {
		return nil, err
	}
	rows, affected, err := d.runMutation(ctx, h, req.Table, string(OpUpdate), sqlStr, args, true)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && affected == 0 {
		return nil, fmt.Errorf("%w: table %s", ErrRowNotFound, req.Table)
	}
	var row query.Row
	if len(rows) > 0 {
		row = rows[0]
	}
	if row != nil {
		d.broadcast(ctx, req.Table, EventUpdate, []query.Row{row})
	}
	return row, nil
}

// DeleteRequest describes one single-row delete by primary key.
type DeleteRequest struct {
	Table    string
	ID       any
	IDColumn string
	User     *UserContext
	IsSystem bool
	Tx       *sql.Tx
}

func (r *DeleteRequest) idColumn() string {
	if r.IDColumn != "" {
		return r.IDColumn
	}
	return "id"
}

// Delete removes one row by id, checking row-dependent rules against
// the stored row first.
func (d *Database) Delete(ctx context.Context, req *DeleteRequest) error {
	h := d.handle(req.Tx)
	probe, err := d.authorize(ctx, req.Table, OpDelete, req.User, req.IsSystem, h)
	if err != nil {
		return err
	}
	p := &query.Params{Filter: map[string]any{req.idColumn(): req.ID}}

	var current query.Row
	if probe != nil && !probe.Status {
		current, err = d.fetchOne(ctx, h, req.Table, p)
		if err != nil {
			return err
		}
		if !d.rowAllowed(ctx, probe, req.Table, OpDelete, req.User, current, h) {
			return fmt.Errorf("%w: operation %s on table %s", ErrPermissionDenied, OpDelete, req.Table)
		}
	}

	sqlStr, args, err := d.translator.Delete(req.Table, p)
	if err != nil {
		return err
	}
	_, affected, err := d.runMutation(ctx, h, req.Table, string(OpDelete), sqlStr, args, false)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: table %s", ErrRowNotFound, req.Table)
	}
	if current == nil {
		current = query.Row{req.idColumn(): req.ID}
	}
	d.broadcast(ctx, req.Table, EventDelete, []query.Row{current})
	return nil
}

// AdvanceUpdateRequest describes a predicate-based bulk update.
type AdvanceUpdateRequest struct {
	Table    string
	Params   *query.Params
	Data     query.Row
	IDColumn string
	User     *UserContext
	IsSystem bool
	Tx       *sql.Tx
}

func (r *AdvanceUpdateRequest) idColumn() string {
	if r.IDColumn != "" {
		return r.IDColumn
	}
	return "id"
}

// AdvanceUpdate updates all rows matching the predicate. When
// row-dependent rules apply, matching rows are fetched and filtered
// first and the write is narrowed to the surviving rows by id.
func (d *Database) AdvanceUpdate(ctx context.Context, req *AdvanceUpdateRequest) ([]query.Row, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	h := d.handle(req.Tx)
	probe, err := d.authorize(ctx, req.Table, OpUpdate, req.User, req.IsSystem, h)
	if err != nil {
		return nil, err
	}

	p := req.Params
	if probe != nil && !probe.Status {
		p, err = d.narrowToAllowed(ctx, probe, req.Table, OpUpdate, req.User, req.Params, req.idColumn(), h)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return []query.Row{}, nil
		}
	}

	sqlStr, args, err := d.translator.Update(req.Table, req.Data, p)
	if err != nil {
		return nil, err
	}
	rows, _, err := d.runMutation(ctx, h, req.Table, string(OpUpdate), sqlStr, args, true)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		d.broadcast(ctx, req.Table, EventUpdate, rows)
	}
	return rows, nil
}

// AdvanceDeleteRequest describes a predicate-based bulk delete.
type AdvanceDeleteRequest struct {
	Table    string
	Params   *query.Params
	IDColumn string
	User     *UserContext
	IsSystem bool
	Tx       *sql.Tx
}

func (r *AdvanceDeleteRequest) idColumn() string {
	if r.IDColumn != "" {
		return r.IDColumn
	}
	return "id"
}

// AdvanceDelete removes all rows matching the predicate, narrowing to
// permission-surviving rows the same way AdvanceUpdate does. Returns
// the number of rows removed.
func (d *Database) AdvanceDelete(ctx context.Context, req *AdvanceDeleteRequest) (int64, error) {
	if err := req.Params.Validate(); err != nil {
		return 0, err
	}
	h := d.handle(req.Tx)
	probe, err := d.authorize(ctx, req.Table, OpDelete, req.User, req.IsSystem, h)
	if err != nil {
		return 0, err
	}

	p := req.Params
	var removed []query.Row
	if probe != nil && !probe.Status {
		p, err = d.narrowToAllowed(ctx, probe, req.Table, OpDelete, req.User, req.Params, req.idColumn(), h)
		if err != nil {
			return 0, err
		}
		if p == nil {
			return 0, nil
		}
	}

	sqlStr, args, err := d.translator.Delete(req.Table, p)
	if err != nil {
		return 0, err
	}
	_, affected, err := d.runMutation(ctx, h, req.Table, string(OpDelete), sqlStr, args, false)
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		if removed == nil {
			removed = []query.Row{}
		}
		d.broadcast(ctx, req.Table, EventDelete, removed)
	}
	return affected, nil
}

// narrowToAllowed fetches the rows matching p, filters them through the
// probe's row-dependent rules, and returns a predicate addressing only
// the survivors by id. Every fetched row must carry the id column.
// A predicate matching no rows at all returns (nil, nil): the caller
// has nothing to write, which is not a denial.
func (d *Database) narrowToAllowed(ctx context.Context, probe *EnforcementResult, table string, op Operation, user *UserContext, p *query.Params, idCol string, h query.Querier) (*query.Params, error) {
	fetched, err := d.runQuery(ctx, h, table, p)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return nil, nil
	}
	allowed := d.filterRows(ctx, probe, table, op, user, fetched, h)
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: operation %s on table %s", ErrPermissionDenied, op, table)
	}
	ids := make([]any, 0, len(allowed))
	for _, row := range allowed {
		id, ok := row[idCol]
		if !ok {
			return nil, fmt.Errorf("%w: rows in table %s have no %q column for permission narrowing", query.ErrInvalidParams, table, idCol)
		}
		ids = append(ids, id)
	}
	return &query.Params{In: map[string][]any{idCol: ids}}, nil
}

func (d *Database) fetchOne(ctx context.Context, h query.Querier, table string, p *query.Params) (query.Row, error) {
	rows, err := d.runQuery(ctx, h, table, p)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: table %s", ErrRowNotFound, table)
	}
	return rows[0], nil
}

func (d *Database) runQuery(ctx context.Context, h query.Querier, table string, p *query.Params) ([]query.Row, error) {
	sqlStr, args, err := d.translator.Select(table, p)
	if err != nil {
		return nil, err
	}
	ev := &hook.QueryEvent{Table: table, SQL: sqlStr, Args: args}
	d.hooks.EmitBeforeQuery(ctx, ev)

	start := time.Now()
	rows, err := h.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		d.hooks.EmitError(ctx, ev, err)
		return nil, fmt.Errorf("fieldgate: query %s: %w", table, err)
	}
	defer rows.Close()
	out, err := query.ScanRows(rows)
	if err != nil {
		d.hooks.EmitError(ctx, ev, err)
		return nil, err
	}

	ev.Rows = out
	ev.ElapsedNs = time.Since(start).Nanoseconds()
	d.hooks.EmitAfterQuery(ctx, ev)
	return out, nil
}

// runMutation executes a write through the hook pipeline. When
// returning is set the statement yields its affected rows (RETURNING);
// otherwise only the driver-reported count is available.
func (d *Database) runMutation(ctx context.Context, h query.Querier, table, op, sqlStr string, args []any, returning bool) ([]query.Row, int64, error) {
	ev := &hook.MutationEvent{Table: table, Operation: op, SQL: sqlStr, Args: args}
	d.hooks.EmitBeforeMutation(ctx, ev)
	start := time.Now()

	var (
		out      []query.Row
		affected int64
	)
	if returning && d.adapter.Supports(dialect.FeatureReturning) {
		rows, err := h.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			d.hooks.EmitError(ctx, ev, err)
			return nil, 0, fmt.Errorf("fieldgate: %s %s: %w", op, table, err)
		}
		defer rows.Close()
		out, err = query.ScanRows(rows)
		if err != nil {
			d.hooks.EmitError(ctx, ev, err)
			return nil, 0, err
		}
		affected = int64(len(out))
	} else {
		res, err := h.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			d.hooks.EmitError(ctx, ev, err)
			return nil, 0, fmt.Errorf("fieldgate: %s %s: %w", op, table, err)
		}
		affected, _ = res.RowsAffected()
	}

	ev.Rows = out
	ev.Affected = affected
	ev.ElapsedNs = time.Since(start).Nanoseconds()
	d.hooks.EmitAfterMutation(ctx, ev)
	return out, affected, nil
}

func (d *Database) broadcast(ctx context.Context, table, event string, rows []query.Row) {
	if d.broadcaster == nil {
		return
	}
	d.broadcaster.Broadcast(ctx, table, event, rows)
}

// CreateTable creates a table and writes its permission document in the
// same transaction. A nil perms defaults every operation to private, so
// new tables are closed until rules are set explicitly.
func (d *Database) CreateTable(ctx context.Context, def *schema.TableDef, perms *TablePermissions, tx *sql.Tx) error {
	if def == nil {
		return fmt.Errorf("%w: table definition required", query.ErrInvalidParams)
	}
	if d.cfg.excluded(def.Name) {
		return fmt.Errorf("%w: %s", ErrExcludedTable, def.Name)
	}
	if perms == nil {
		perms = DefaultPermissions()
	}

	run := func(tx *sql.Tx) error {
		if err := d.schema.CreateTable(ctx, tx, def); err != nil {
			return err
		}
		_, err := d.store.Set(ctx, def.Name, perms, tx)
		return err
	}
	if tx != nil {
		return run(tx)
	}
	return d.withTx(ctx, run)
}

// DropTable drops a table and removes its permission document in the
// same transaction.
func (d *Database) DropTable(ctx context.Context, table string, tx *sql.Tx) error {
	if d.cfg.excluded(table) {
		return fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	run := func(tx *sql.Tx) error {
		if err := d.schema.DropTable(ctx, tx, table); err != nil {
			return err
		}
		return d.store.Delete(ctx, table, tx)
	}
	if tx != nil {
		return run(tx)
	}
	return d.withTx(ctx, run)
}

// ModifyTable applies column adds, drops, and renames.
func (d *Database) ModifyTable(ctx context.Context, table string, mod *schema.Modification, tx *sql.Tx) error {
	if d.cfg.excluded(table) {
		return fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	return d.schema.ModifyTable(ctx, d.handle(tx), table, mod)
}

// AddForeignKey adds a foreign key constraint (Postgres only).
func (d *Database) AddForeignKey(ctx context.Context, table string, fk *schema.ForeignKeyDef, tx *sql.Tx) error {
	if d.cfg.excluded(table) {
		return fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	return d.schema.AddForeignKey(ctx, d.handle(tx), table, fk)
}

// DropForeignKey drops a named foreign key constraint (Postgres only).
func (d *Database) DropForeignKey(ctx context.Context, table, constraint string, tx *sql.Tx) error {
	if d.cfg.excluded(table) {
		return fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	return d.schema.DropForeignKey(ctx, d.handle(tx), table, constraint)
}

// TruncateTable removes all rows from a table.
func (d *Database) TruncateTable(ctx context.Context, table string, tx *sql.Tx) error {
	if d.cfg.excluded(table) {
		return fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	return d.schema.Truncate(ctx, d.handle(tx), table)
}

// Tables lists user tables, excluding the metadata table and any
// configured exclusions.
func (d *Database) Tables(ctx context.Context, tx *sql.Tx) ([]string, error) {
	names, err := d.schema.Tables(ctx, d.handle(tx))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !d.cfg.excluded(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

// TableSchema introspects one table.
func (d *Database) TableSchema(ctx context.Context, table string, tx *sql.Tx) (*schema.TableInfo, error) {
	if d.cfg.excluded(table) {
		return nil, fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	info, err := d.schema.TableInfo(ctx, d.handle(tx), table)
	if err != nil {
		if errors.Is(err, schema.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
		}
		return nil, err
	}
	return info, nil
}

// TableSchemaWithPermissions bundles a table's introspected shape with
// its stored permission document. A missing document leaves Permissions
// nil rather than failing the schema read.
type TableSchemaWithPermissions struct {
	Schema      *schema.TableInfo `json:"schema"`
	Permissions *TablePermissions `json:"permissions,omitempty"`
}

// TableSchemaWithPermissions returns the table schema merged with the
// stored permission document.
func (d *Database) TableSchemaWithPermissions(ctx context.Context, table string, tx *sql.Tx) (*TableSchemaWithPermissions, error) {
	info, err := d.TableSchema(ctx, table, tx)
	if err != nil {
		return nil, err
	}
	out := &TableSchemaWithPermissions{Schema: info}
	perms, err := d.store.Get(ctx, table, d.handle(tx))
	if err != nil && !errors.Is(err, ErrNoPermissions) {
		return nil, err
	}
	out.Permissions = perms
	return out, nil
}

// GetPermissions returns the permission document for a table.
func (d *Database) GetPermissions(ctx context.Context, table string, tx *sql.Tx) (*TablePermissions, error) {
	if d.cfg.excluded(table) {
		return nil, fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	return d.store.Get(ctx, table, d.handle(tx))
}

// SetPermissions upserts the permission document for a table.
func (d *Database) SetPermissions(ctx context.Context, table string, perms *TablePermissions, tx *sql.Tx) (*TablePermissions, error) {
	if d.cfg.excluded(table) {
		return nil, fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	return d.store.Set(ctx, table, perms, d.handle(tx))
}

// DeletePermissions removes the permission document for a table; the
// table then denies everything.
func (d *Database) DeletePermissions(ctx context.Context, table string, tx *sql.Tx) error {
	if d.cfg.excluded(table) {
		return fmt.Errorf("%w: %s", ErrExcludedTable, table)
	}
	return d.store.Delete(ctx, table, d.handle(tx))
}

func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("fieldgate: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("fieldgate: rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("fieldgate: commit: %w", err)
	}
	return nil
}
