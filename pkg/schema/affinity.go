package schema

import (
	"strings"

	"github.com/leapstack-labs/leapquery/pkg/core"
)

// Affinity returns the base semantic type of a declared column type,
// following the SQLite type affinity rules. Boolean and date-like
// declarations, which SQLite would give NUMERIC affinity, are mapped to
// BOOLEAN and TEXT so their values surface with a useful Go type.
func Affinity(declared string) core.SemanticType {
	t := strings.ToUpper(declared)
	switch {
	case strings.TrimSpace(t) == "":
		return core.TypeBlob
	case strings.Contains(t, "INT"):
		return core.TypeInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return core.TypeText
	case strings.Contains(t, "BLOB"):
		return core.TypeBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return core.TypeReal
	case strings.Contains(t, "BOOL"):
		return core.TypeBoolean
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return core.TypeText
	default:
		// NUMERIC, DECIMAL(10,5) and friends.
		return core.TypeReal
	}
}
