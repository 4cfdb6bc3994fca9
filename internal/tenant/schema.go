// Package tenant manages per-organization Postgres schemas: naming,
// provisioning and archival. Every tenant lives in its own schema holding a
// users table and an audit_logs table; schema names are derived from the
// organization identifier and validated before they ever reach a query.
package tenant

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrInvalidIdentifier reports an organization identifier outside [a-z0-9_].
	ErrInvalidIdentifier = errors.New("tenant: invalid organization identifier")
	// ErrUnsafeIdentifier reports a name that is not a safe SQL identifier.
	ErrUnsafeIdentifier = errors.New("tenant: unsafe sql identifier")
)

var (
	orgIDPattern      = regexp.MustCompile(`^[a-z0-9_]+$`)
	identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// SchemaName is a validated Postgres schema name. The zero value is invalid;
// values are only produced by DeriveSchemaName, ArchiveSchemaName and
// ParseSchemaName, so an unvalidated name cannot reach query construction.
type SchemaName struct {
	name string
}

// DeriveSchemaName maps an organization identifier to its tenant schema name.
func DeriveSchemaName(orgID string) (SchemaName, error) {
	if !orgIDPattern.MatchString(orgID) {
		return SchemaName{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, orgID)
	}
	return SchemaName{name: "org_" + orgID}, nil
}

// ArchiveSchemaName maps an organization identifier to the schema name its
// partition is renamed to on archival. Archived names are never reused.
func ArchiveSchemaName(orgID string) (SchemaName, error) {
	if !orgIDPattern.MatchString(orgID) {
		return SchemaName{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, orgID)
	}
	return SchemaName{name: "del_" + orgID}, nil
}

// ParseSchemaName validates a schema name read back from storage or a claim.
func ParseSchemaName(name string) (SchemaName, error) {
	if err := checkIdentifier(name); err != nil {
		return SchemaName{}, err
	}
	return SchemaName{name: name}, nil
}

// String returns the raw schema name.
func (s SchemaName) String() string { return s.name }

// IsZero reports whether the name was never validated.
func (s SchemaName) IsZero() bool { return s.name == "" }

// Quoted returns the double-quoted form for interpolation into SQL. This is
// the sole path by which a schema name enters a query.
func (s SchemaName) Quoted() string {
	if s.name == "" {
		panic("tenant: quoting zero SchemaName")
	}
	return `"` + s.name + `"`
}

// Table returns a quoted schema-qualified table reference, e.g. "org_kraft".users.
func (s SchemaName) Table(table string) string {
	if err := checkIdentifier(table); err != nil {
		panic(err)
	}
	return s.Quoted() + `."` + table + `"`
}

// Scan validates a schema name read from a database column.
func (s *SchemaName) Scan(src any) error {
	raw, ok := src.(string)
	if !ok {
		if b, isBytes := src.([]byte); isBytes {
			raw = string(b)
		} else {
			return fmt.Errorf("tenant: cannot scan %T into SchemaName", src)
		}
	}
	parsed, err := ParseSchemaName(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer.
func (s SchemaName) Value() (driver.Value, error) {
	if s.name == "" {
		return nil, errors.New("tenant: zero SchemaName")
	}
	return s.name, nil
}

// MarshalJSON renders the raw name.
func (s SchemaName) MarshalJSON() ([]byte, error) { return json.Marshal(s.name) }

// QuoteIdentifier quotes an arbitrary SQL identifier after validation.
func QuoteIdentifier(name string) (string, error) {
	if err := checkIdentifier(name); err != nil {
		return "", err
	}
	return `"` + name + `"`, nil
}

func checkIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrUnsafeIdentifier, name)
	}
	return nil
}
