package target

import (
	"strings"

	"github.com/johndauphine/crosswalk/internal/catalog"
)

// quotePGIdent safely quotes a PostgreSQL identifier, escaping embedded quotes.
func quotePGIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func qualifyPGTable(id catalog.TableID) string {
	if id.Schema == "" {
		return quotePGIdent(id.Table)
	}
	return quotePGIdent(id.Schema) + "." + quotePGIdent(id.Table)
}
