package catalog

import "fmt"

// ObjectInfo carries the minimal identity fields a Describer needs to
// produce a descriptive name for cascade/restrict messages (§7). A catalog
// store fills this in from its own rows; objaddr/depgraph never interpret
// it further.
type ObjectInfo struct {
	Class      Class
	Schema     string  // qualifying schema name, empty if not schema-qualified
	Name       string  // object name (table, function, index, ...)
	Column     string  // column name, only set for a table sub-object
	Signature  string  // e.g. "(int4, int4)" for functions/operators
	OnTable    string  // owning table, for constraints/triggers/rules/defaults
	OpFamily   string  // operator family/method, for operator classes
	Qualify    bool    // whether Schema should be prefixed
}

// Describe formats an ObjectInfo the way §7 specifies: "table public.foo",
// "index foo_pkey", "function foo(int4)", "operator +(int4, int4)",
// "constraint my_ck on public.foo", "default for table foo column bar",
// "operator class int4_ops for btree". Names are schema-qualified only when
// Qualify is true (i.e. not visible in the current search path).
func Describe(info ObjectInfo) string {
	qualified := info.Name
	if info.Qualify && info.Schema != "" {
		qualified = info.Schema + "." + info.Name
	}

	switch info.Class {
	case ClassTable:
		if info.Column != "" {
			return fmt.Sprintf("column %s of table %s", info.Column, qualified)
		}
		return fmt.Sprintf("table %s", qualified)
	case ClassFunction:
		return fmt.Sprintf("function %s%s", qualified, info.Signature)
	case ClassOperator:
		return fmt.Sprintf("operator %s%s", qualified, info.Signature)
	case ClassType:
		return fmt.Sprintf("type %s", qualified)
	case ClassCast:
		return fmt.Sprintf("cast %s", qualified)
	case ClassConstraint:
		return fmt.Sprintf("constraint %s on %s", qualified, info.OnTable)
	case ClassConversion:
		return fmt.Sprintf("conversion %s", qualified)
	case ClassColumnDefault:
		return fmt.Sprintf("default for table %s column %s", info.OnTable, info.Column)
	case ClassLanguage:
		return fmt.Sprintf("language %s", qualified)
	case ClassOperatorClass:
		return fmt.Sprintf("operator class %s for %s", qualified, info.OpFamily)
	case ClassRewriteRule:
		return fmt.Sprintf("rule %s on %s", qualified, info.OnTable)
	case ClassTrigger:
		return fmt.Sprintf("trigger %s on %s", qualified, info.OnTable)
	case ClassSchema:
		return fmt.Sprintf("schema %s", qualified)
	default:
		return fmt.Sprintf("object %s", qualified)
	}
}
