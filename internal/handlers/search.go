package handlers

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/support_desk/internal/service/search"
	"github.com/Skotchmaster/support_desk/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	skip, limit := util.Clamp(
		parseIntDefault(c.QueryParam("skip"), 0),
		parseIntDefault(c.QueryParam("limit"), util.DefaultPageSize),
	)

	total, tickets, err := search.Search(c.Request().Context(), h.ES, h.Index, q, skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "tickets": tickets})
}
