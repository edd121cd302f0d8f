package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/swanstudios/studio/core"
)

const orderingParam = "ordering"

// bindOrdering parses `?ordering=field,-field` into DB orderings.
// A leading "-" sorts descending. Blank & repeated fields are skipped, the first occurrence wins.
func bindOrdering(ctx echo.Context) []core.DBOrdering {
	raw := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if raw == "" {
		return nil
	}

	var (
		res  []core.DBOrdering
		seen = make(map[string]bool)
	)
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		ord := core.DBOrdering{Field: strings.TrimPrefix(field, "-"), Ascending: !strings.HasPrefix(field, "-")}
		if ord.Field == "" || seen[ord.Field] {
			continue
		}
		seen[ord.Field] = true
		res = append(res, ord)
	}
	return res
}
