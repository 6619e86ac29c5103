package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/clubhouse/core"
	"github.com/trezcool/clubhouse/core/schedule"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindMonth reads the optional "month" query param (YYYY-MM).
func bindMonth(ctx echo.Context) (*schedule.Month, error) {
	val := ctx.QueryParam("month")
	if val == "" {
		return nil, nil
	}
	m, err := schedule.ParseMonth(val)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "month", Error: "must be a month formatted as YYYY-MM"})
	}
	return &m, nil
}

// bindBool reads an optional boolean query param.
func bindBool(ctx echo.Context, name string) (bool, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, core.NewValidationError(err, core.FieldError{Field: name, Error: "must be true or false"})
	}
	return b, nil
}
