package fieldgate

import (
	"context"
	"fmt"

	"github.com/fieldgate/fieldgate/query"
)

// PermissionSource serves permission documents to the evaluation hot
// path. GetSync is cache-only so warm lookups avoid an async hop; Get
// falls back to the backing store on a miss.
type PermissionSource interface {
	// GetSync returns the cached document for table, if warm.
	GetSync(table string) (*TablePermissions, bool)

	// Get returns the document for table, reading through the cache.
	// Returns an error wrapping ErrNoPermissions when no document
	// exists. A non-nil tx scopes the read to the caller's transaction.
	Get(ctx context.Context, table string, tx query.Querier) (*TablePermissions, error)
}

// PermissionStore extends PermissionSource with writes. Set and Delete
// update the cache synchronously before returning, so permissions are
// read-your-write consistent.
type PermissionStore interface {
	PermissionSource

	// Set upserts the document for table and returns the stored value.
	Set(ctx context.Context, table string, perms *TablePermissions, tx query.Querier) (*TablePermissions, error)

	// Delete removes the document for table and evicts its cache entry.
	Delete(ctx context.Context, table string, tx query.Querier) error
}

// EnforcementResult is the contract between the evaluation engine and
// the enforcement orchestrator. When Status is false but HasFieldCheck
// or HasCustomFunction is set, the caller is expected to fetch candidate
// rows and re-enter with them; the classified rule slices are carried so
// the second phase never re-classifies.
type EnforcementResult struct {
	// Row / Rows carry the (possibly filtered) row data through the
	// decision. Exactly one is set, mirroring what the caller supplied.
	Row  Row
	Rows []Row

	// Status is the access decision so far.
	Status bool

	// HasFieldCheck / HasCustomFunction report that row-dependent rules
	// exist and rows are needed to finish the decision.
	HasFieldCheck     bool
	HasCustomFunction bool

	// FieldCheckRules / CustomFunctionRules are the classified
	// row-dependent rule subsets, for fast-path re-entry.
	FieldCheckRules     []Rule
	CustomFunctionRules []Rule

	// Message distinguishes denial causes: missing document, missing
	// operation rules, or plain rule denial.
	Message string
}

// EnforceInput bundles the arguments of Enforce.
type EnforceInput struct {
	Table     string
	Operation Operation
	User      *UserContext

	// Source resolves the table's permission document.
	Source PermissionSource

	// Row is a single candidate row; Rows a candidate row set. Leave
	// both nil for the row-free permission probe.
	Row  Row
	Rows []Row

	// DB is the live handle handed to customSql/customFunction rules.
	DB query.Querier

	// ChunkSize bounds per-chunk row filtering; 0 means 1000.
	ChunkSize int
}

func (in *EnforceInput) hasRows() bool { return in.Row != nil || in.Rows != nil }

func (in *EnforceInput) chunkSize() int {
	if in.ChunkSize > 0 {
		return in.ChunkSize
	}
	return 1000
}

// Enforce is the orchestration-facing entry point: resolve the table's
// permission document, classify its rules, and run the layered decision
// procedure: cheap row-independent rules first, then custom functions,
// then field checks. Row-dependent stages either filter the supplied
// rows or, when none were supplied, return early carrying the
// classification so the caller can fetch rows and finish cheaply.
//
// Policy-shape semantics (preserved from the original system, asymmetry
// and all): no document at all denies, a document without rules for the
// operation denies, but an operation whose rule list is present and
// empty is an explicit open policy and allows unconditionally.
func (e *Evaluator) Enforce(ctx context.Context, in *EnforceInput) *EnforcementResult {
	perms, ok := in.Source.GetSync(in.Table)
	if !ok {
		var err error
		perms, err = in.Source.Get(ctx, in.Table, in.DB)
		if err != nil {
			return &EnforcementResult{
				Status:  false,
				Message: fmt.Sprintf("no permissions defined for table %s", in.Table),
			}
		}
	}
	if perms == nil {
		return &EnforcementResult{
			Status:  false,
			Message: fmt.Sprintf("no permissions defined for table %s", in.Table),
		}
	}

	rules, defined := perms.Rules(in.Operation)
	if !defined {
		return &EnforcementResult{
			Status:  false,
			Message: fmt.Sprintf("no permissions defined for operation %s on table %s", in.Operation, in.Table),
		}
	}

	// Present-but-empty rule list: explicit open policy.
	if len(rules) == 0 {
		return &EnforcementResult{Status: true, Row: in.Row, Rows: in.Rows}
	}

	simple, customFn, fieldCheck := classifyRules(rules)

	// Row-independent rules first: a pass here is global access, rows
	// flow through unfiltered.
	for _, r := range simple {
		if granted, decided := e.evalRule(ctx, r, in.User, Row{}, in.DB); decided {
			if granted {
				return &EnforcementResult{Status: true, Row: in.Row, Rows: in.Rows}
			}
			break
		}
	}

	res := &EnforcementResult{
		HasFieldCheck:       len(fieldCheck) > 0,
		HasCustomFunction:   len(customFn) > 0,
		FieldCheckRules:     fieldCheck,
		CustomFunctionRules: customFn,
	}

	// Custom functions are tried before field checks: the original
	// system treats them as the more specific check.
	if len(customFn) > 0 {
		if !in.hasRows() {
			return res
		}
		if in.Rows != nil {
			filtered := e.filterRows(ctx, in, customFn, false)
			if len(filtered) > 0 {
				res.Status = true
				res.Rows = filtered
				return res
			}
		} else if e.rowPasses(ctx, in, customFn, false, in.Row) {
			res.Status = true
			res.Row = in.Row
			return res
		}
	}

	if len(fieldCheck) > 0 {
		if !in.hasRows() {
			return res
		}
		if in.Rows != nil {
			filtered := e.filterRows(ctx, in, fieldCheck, true)
			res.Status = len(filtered) > 0
			res.Rows = filtered
			if res.Status {
				return res
			}
		} else if e.rowPasses(ctx, in, fieldCheck, true, in.Row) {
			res.Status = true
			res.Row = in.Row
			return res
		}
	}

	res.Status = false
	res.Message = fmt.Sprintf("permission denied for operation %s on table %s", in.Operation, in.Table)
	return res
}

// filterRows applies row-dependent rules chunk by chunk, preserving the
// original relative order of surviving rows.
func (e *Evaluator) filterRows(ctx context.Context, in *EnforceInput, rules []Rule, fieldChecksOnly bool) []Row {
	size := in.chunkSize()
	filtered := make([]Row, 0, len(in.Rows))
	for start := 0; start < len(in.Rows); start += size {
		end := min(start+size, len(in.Rows))
		for _, row := range in.Rows[start:end] {
			if e.rowPasses(ctx, in, rules, fieldChecksOnly, row) {
				filtered = append(filtered, row)
			}
		}
	}
	return filtered
}

func (e *Evaluator) rowPasses(ctx context.Context, in *EnforceInput, rules []Rule, fieldChecksOnly bool, row Row) bool {
	if fieldChecksOnly {
		return e.EvaluateFieldChecks(ctx, rules, in.User, row)
	}
	for _, r := range rules {
		if granted, _ := e.evalRule(ctx, r, in.User, row, in.DB); granted {
			return true
		}
	}
	return false
}
