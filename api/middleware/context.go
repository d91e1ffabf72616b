package middleware

import (
	"authgate/internal/entity"

	"github.com/labstack/echo/v4"
)

const (
	contextSessionKey = "auth_session"
	contextHandleKey  = "auth_session_handle"
)

func SetSession(c echo.Context, sess *entity.Session) {
	c.Set(contextSessionKey, sess)
}

func SessionFromContext(c echo.Context) (*entity.Session, bool) {
	value := c.Get(contextSessionKey)
	sess, ok := value.(*entity.Session)
	return sess, ok && sess != nil
}
