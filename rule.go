package fieldgate

// Allow discriminates the rule variants of the permission language.
type Allow string

const (
	// AllowPublic grants access to everyone. Terminal.
	AllowPublic Allow = "public"

	// AllowPrivate denies access to everyone. Terminal.
	AllowPrivate Allow = "private"

	// AllowRole grants access when the user's role is in the rule's role list.
	AllowRole Allow = "role"

	// AllowAuth grants access to any authenticated user.
	AllowAuth Allow = "auth"

	// AllowGuest grants access to unauthenticated users only.
	AllowGuest Allow = "guest"

	// AllowLabels grants access when user and rule labels intersect.
	AllowLabels Allow = "labels"

	// AllowTeams grants access when user and rule teams intersect.
	AllowTeams Allow = "teams"

	// AllowStatic resolves to a boolean literal. Terminal either way.
	AllowStatic Allow = "static"

	// AllowFieldCheck compares a row field against a user-context field or
	// a static value. Row-dependent.
	AllowFieldCheck Allow = "fieldCheck"

	// AllowCustomSQL runs a SQL template with user-context substitution;
	// at least one returned row grants access.
	AllowCustomSQL Allow = "customSql"

	// AllowCustomFunction invokes a registered predicate function.
	// Row-dependent.
	AllowCustomFunction Allow = "customFunction"
)

// FieldOperator is the comparison operator of a fieldCheck rule.
type FieldOperator string

const (
	FieldEquals    FieldOperator = "==="
	FieldNotEquals FieldOperator = "!=="
	FieldIn        FieldOperator = "in"
	FieldNotIn     FieldOperator = "notIn"
)

// ValueSource tells a fieldCheck rule where its comparison value comes from.
type ValueSource string

const (
	// SourceUserContext resolves the rule's value as a UserContext field name.
	SourceUserContext ValueSource = "userContext"

	// SourceStatic uses the rule's value verbatim.
	SourceStatic ValueSource = "static"
)

// FieldCheck is the payload of an AllowFieldCheck rule.
type FieldCheck struct {
	// Field is the row column to compare.
	Field string `json:"field"`

	// Operator is one of ===, !==, in, notIn.
	Operator FieldOperator `json:"operator"`

	// ValueType selects between user-context resolution and a literal.
	ValueType ValueSource `json:"valueType"`

	// Value is a UserContext field name (when ValueType is userContext)
	// or the literal comparison value (when static).
	Value any `json:"value"`
}

// Rule is one clause of a table's permission policy: a tagged union
// discriminated by Allow. A rule list encodes OR semantics: rules are
// evaluated in order and the first decisive rule wins. A rule whose
// required payload is absent is inapplicable and falls through to the
// next rule rather than denying.
type Rule struct {
	Allow Allow `json:"allow"`

	// Roles applies to AllowRole.
	Roles []string `json:"roles,omitempty"`

	// Labels applies to AllowLabels.
	Labels []string `json:"labels,omitempty"`

	// Teams applies to AllowTeams.
	Teams []string `json:"teams,omitempty"`

	// Static applies to AllowStatic.
	Static *bool `json:"static,omitempty"`

	// FieldCheck applies to AllowFieldCheck.
	FieldCheck *FieldCheck `json:"fieldCheck,omitempty"`

	// CustomSQL applies to AllowCustomSQL. Template with :field tokens
	// substituted from the UserContext (see Evaluator).
	CustomSQL string `json:"customSql,omitempty"`

	// CustomFunction applies to AllowCustomFunction and names a predicate
	// in the FuncRegistry.
	CustomFunction string `json:"customFunction,omitempty"`
}

// RowDependent reports whether the rule needs row data to evaluate.
func (r Rule) RowDependent() bool {
	return r.Allow == AllowFieldCheck || r.Allow == AllowCustomFunction
}

// TablePermissions is one table's permission document: an ordered rule
// list per operation. A nil entry means "no rules defined" for that
// operation (denied); a present-but-empty list is an explicit open policy
// (allowed). The asymmetry is deliberate; see Evaluator.Enforce.
type TablePermissions struct {
	Operations map[Operation][]Rule `json:"operations"`
}

// Rules returns the rule list for op and whether the operation is defined
// at all. A defined-but-empty list returns (non-nil empty, true).
func (p *TablePermissions) Rules(op Operation) ([]Rule, bool) {
	if p == nil || p.Operations == nil {
		return nil, false
	}
	rules, ok := p.Operations[op]
	if !ok || rules == nil {
		return nil, false
	}
	return rules, true
}

// DefaultPermissions returns the document attached to newly created tables
// when the caller supplies none: private for all four operations.
func DefaultPermissions() *TablePermissions {
	ops := make(map[Operation][]Rule, len(Operations))
	for _, op := range Operations {
		ops[op] = []Rule{{Allow: AllowPrivate}}
	}
	return &TablePermissions{Operations: ops}
}

// classifyRules splits a rule list into the three evaluation buckets in a
// single pass, preserving relative order within each bucket.
func classifyRules(rules []Rule) (simple, customFn, fieldCheck []Rule) {
	for _, r := range rules {
		switch r.Allow {
		case AllowFieldCheck:
			fieldCheck = append(fieldCheck, r)
		case AllowCustomFunction:
			customFn = append(customFn, r)
		default:
			simple = append(simple, r)
		}
	}
	return simple, customFn, fieldCheck
}

// StripFieldChecks returns rules with all fieldCheck rules removed. Used by
// realtime subscription gating, which runs without row data.
func StripFieldChecks(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r.Allow != AllowFieldCheck {
			out = append(out, r)
		}
	}
	return out
}
