package forge

import (
	"fmt"
	"strings"
)

// operators lists the comparison operators a Condition may use.
var operators = map[string]string{
	"=":        "=",
	"!=":       "!=",
	"<>":       "<>",
	">":        ">",
	">=":       ">=",
	"<":        "<",
	"<=":       "<=",
	"LIKE":     "LIKE",
	"NOT LIKE": "NOT LIKE",
}

// Condition is a filter built from a column, an operator and a literal value.
// It renders to the same raw clause text Where accepts.
type Condition struct {
	column   string
	operator string
	value    Value
	null     bool
	notNull  bool
	joiner   string
	group    []Condition
	err      error
}

// C creates a condition comparing column to a literal value.
//
// Example:
//
//	forge.C("level", ">=", 10)
func C(column, operator string, value any) Condition {
	op, ok := operators[strings.ToUpper(operator)]
	if !ok {
		return Condition{err: fmt.Errorf("invalid operator %q", operator)}
	}
	v, err := ValueOf(value)
	if err != nil {
		return Condition{err: fmt.Errorf("column %q: %w", column, err)}
	}
	return Condition{column: column, operator: op, value: v}
}

// Eq is shorthand for C(column, "=", value).
func Eq(column string, value any) Condition {
	return C(column, "=", value)
}

// Ne is shorthand for C(column, "!=", value).
func Ne(column string, value any) Condition {
	return C(column, "!=", value)
}

// Gt is shorthand for C(column, ">", value).
func Gt(column string, value any) Condition {
	return C(column, ">", value)
}

// Ge is shorthand for C(column, ">=", value).
func Ge(column string, value any) Condition {
	return C(column, ">=", value)
}

// Lt is shorthand for C(column, "<", value).
func Lt(column string, value any) Condition {
	return C(column, "<", value)
}

// Le is shorthand for C(column, "<=", value).
func Le(column string, value any) Condition {
	return C(column, "<=", value)
}

// Like is shorthand for C(column, "LIKE", pattern).
func Like(column, pattern string) Condition {
	return C(column, "LIKE", pattern)
}

// IsNull creates an IS NULL condition.
func IsNull(column string) Condition {
	return Condition{column: column, null: true}
}

// NotNull creates an IS NOT NULL condition.
func NotNull(column string) Condition {
	return Condition{column: column, notNull: true}
}

// And groups conditions with AND.
func And(conditions ...Condition) Condition {
	return Condition{joiner: " AND ", group: conditions}
}

// Or groups conditions with OR.
func Or(conditions ...Condition) Condition {
	return Condition{joiner: " OR ", group: conditions}
}

// clause renders the condition. Literal values go through formatLiteral.
func (c Condition) clause(escape bool) (string, error) {
	if c.err != nil {
		return "", c.err
	}

	if c.joiner != "" {
		if len(c.group) == 0 {
			return "", fmt.Errorf("empty condition group")
		}
		parts := make([]string, 0, len(c.group))
		for _, g := range c.group {
			s, err := g.clause(escape)
			if err != nil {
				return "", err
			}
			if g.joiner != "" {
				s = "(" + s + ")"
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, c.joiner), nil
	}

	if c.column == "" {
		return "", fmt.Errorf("condition without column")
	}

	switch {
	case c.null:
		return c.column + " IS NULL", nil
	case c.notNull:
		return c.column + " IS NOT NULL", nil
	default:
		return c.column + " " + c.operator + " " + formatLiteral(c.value, escape), nil
	}
}
