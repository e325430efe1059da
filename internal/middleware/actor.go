package middleware

import (
	"strings"

	"affiliate-payouts/internal/model"

	"github.com/labstack/echo/v4"
)

const (
	ActorHeader = "X-Actor-Id"
	actorKey    = "actor"
)

// ActorMiddleware records who is calling the admin endpoints so ledger
// transitions can be attributed. It does not authenticate anyone; that is
// left to whatever sits in front of the service.
func ActorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := strings.TrimSpace(c.Request().Header.Get(ActorHeader))
			c.Set(actorKey, model.AdminActor(id))
			return next(c)
		}
	}
}

func ActorFrom(c echo.Context) model.Actor {
	if actor, ok := c.Get(actorKey).(model.Actor); ok {
		return actor
	}
	return model.AdminActor("")
}
