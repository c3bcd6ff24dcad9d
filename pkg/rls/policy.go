package rls

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultPolicyName is the name of the tenant isolation policy on every table.
const DefaultPolicyName = "tenant_isolation_policy"

// DefaultSchema is used for unqualified table names.
const DefaultSchema = "public"

// fingerprintPrefix marks policy comments written by this package.
const fingerprintPrefix = "tenantguard:"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Mode selects what an empty tenant context means for a policy.
type Mode int

const (
	// ModeEmptyUnrestricted lets an empty context see every tenant's rows.
	ModeEmptyUnrestricted Mode = iota
	// ModeStrict hides every row from an empty context; cross-tenant access
	// requires admin mode.
	ModeStrict
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	default:
		return "unrestricted"
	}
}

// ParseMode parses "strict" or "unrestricted" (the default for "").
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unrestricted", "empty-unrestricted":
		return ModeEmptyUnrestricted, nil
	case "strict":
		return ModeStrict, nil
	default:
		return ModeEmptyUnrestricted, fmt.Errorf("unknown policy mode %q", s)
	}
}

// Predicate returns the row predicate comparing column with the tenant context.
func (m Mode) Predicate(column string) string {
	col := pgx.Identifier{column}.Sanitize()
	switch m {
	case ModeStrict:
		return fmt.Sprintf("%s::text = get_tenant_context() OR is_tenant_admin()", col)
	default:
		return fmt.Sprintf("%s::text = get_tenant_context() OR get_tenant_context() = ''", col)
	}
}

// Policy is a row-level security policy on one tenant-scoped table.
type Policy struct {
	Schema     string
	Table      string
	Name       string
	Command    string // ALL, SELECT, INSERT, UPDATE, DELETE
	// Permissive creates the policy AS PERMISSIVE. A table whose only policy
	// is restrictive shows no rows at all, so the isolation policy is
	// permissive; it still narrows access because FORCE RLS leaves no other
	// policy to widen it.
	Permissive bool
	Roles      []string
	Using      string
	WithCheck  string
	// Force applies the policy to the table owner as well.
	Force bool
}

// NewPolicy returns the tenant isolation policy for table in the given mode.
// table may be schema-qualified.
func NewPolicy(table string, mode Mode) (Policy, error) {
	schema, name, err := SplitTableName(table)
	if err != nil {
		return Policy{}, err
	}
	pred := mode.Predicate(TenantColumn)
	return Policy{
		Schema:     schema,
		Table:      name,
		Name:       DefaultPolicyName,
		Command:    "ALL",
		Permissive: true,
		Using:      pred,
		WithCheck:  pred,
		Force:      true,
	}, nil
}

// SplitTableName splits "schema.table" into its parts, defaulting the schema.
func SplitTableName(table string) (schema, name string, err error) {
	table = strings.TrimSpace(table)
	parts := strings.Split(table, ".")
	switch len(parts) {
	case 1:
		schema, name = DefaultSchema, parts[0]
	case 2:
		schema, name = parts[0], parts[1]
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	if !identPattern.MatchString(schema) || !identPattern.MatchString(name) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return schema, name, nil
}

// QualifiedName returns "schema.table" without quoting.
func (p Policy) QualifiedName() string {
	return p.Schema + "." + p.Table
}

func (p Policy) quotedTable() string {
	return pgx.Identifier{p.Schema, p.Table}.Sanitize()
}

func (p Policy) quotedName() string {
	return pgx.Identifier{p.Name}.Sanitize()
}

// CreateStatement renders the CREATE POLICY statement.
func (p Policy) CreateStatement() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE POLICY %s ON %s", p.quotedName(), p.quotedTable())
	if p.Permissive {
		b.WriteString(" AS PERMISSIVE")
	} else {
		b.WriteString(" AS RESTRICTIVE")
	}
	cmd := strings.ToUpper(p.Command)
	if cmd == "" {
		cmd = "ALL"
	}
	fmt.Fprintf(&b, " FOR %s", cmd)
	if roles := p.roleList(); roles != "" {
		fmt.Fprintf(&b, " TO %s", roles)
	}
	if p.Using != "" && cmd != "INSERT" {
		fmt.Fprintf(&b, " USING (%s)", p.Using)
	}
	if p.WithCheck != "" && cmd != "SELECT" && cmd != "DELETE" {
		fmt.Fprintf(&b, " WITH CHECK (%s)", p.WithCheck)
	}
	return b.String()
}

func (p Policy) roleList() string {
	roles := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		r = strings.TrimSpace(r)
		switch strings.ToUpper(r) {
		case "":
			continue
		case "PUBLIC", "CURRENT_USER", "SESSION_USER", "CURRENT_ROLE":
			roles = append(roles, strings.ToUpper(r))
		default:
			roles = append(roles, pgx.Identifier{r}.Sanitize())
		}
	}
	return strings.Join(roles, ", ")
}

// Fingerprint identifies the rendered definition. It is stored as the policy
// comment so a later run can tell whether the live policy is identical.
func (p Policy) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|force=%t", p.CreateStatement(), p.Force)))
	return fingerprintPrefix + hex.EncodeToString(sum[:8])
}

// Statements renders the full idempotent application sequence:
// enable RLS, optionally force it, drop the old policy, create the new one and
// stamp it with its fingerprint.
func (p Policy) Statements() []string {
	table := p.quotedTable()
	stmts := []string{
		fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY", table),
	}
	if p.Force {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s FORCE ROW LEVEL SECURITY", table))
	} else {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s NO FORCE ROW LEVEL SECURITY", table))
	}
	stmts = append(stmts,
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", p.quotedName(), table),
		p.CreateStatement(),
		fmt.Sprintf("COMMENT ON POLICY %s ON %s IS '%s'", p.quotedName(), table, p.Fingerprint()),
	)
	return stmts
}

// DropStatements renders the statements removing the policy and disabling RLS.
func (p Policy) DropStatements() []string {
	table := p.quotedTable()
	return []string{
		fmt.Sprintf("DROP POLICY IF EXISTS %s ON %s", p.quotedName(), table),
		fmt.Sprintf("ALTER TABLE %s NO FORCE ROW LEVEL SECURITY", table),
		fmt.Sprintf("ALTER TABLE %s DISABLE ROW LEVEL SECURITY", table),
	}
}
