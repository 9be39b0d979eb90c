package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

func intQueryParam(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
