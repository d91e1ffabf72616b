package middleware

import (
	"errors"
	"net/http"
	"time"

	"authgate/internal/dto"
	"authgate/internal/entity"
	"authgate/internal/repository"
	"authgate/internal/service"
	"authgate/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const sessionIDBytes = 32

type SessionMiddleware struct {
	Sessions     repository.SessionRepository
	CookieName   string
	CookieDomain string
	Secure       bool
	SameSite     http.SameSite
	MaxAge       time.Duration
	Logger       logrus.FieldLogger
}

type sessionHandle struct {
	mw        SessionMiddleware
	sess      *entity.Session
	loadedID  string
	committed bool
}

// Handler loads the session named by the cookie, exposes it through the
// context and writes it back before the response header goes out.
func (m SessionMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, err := m.load(c)
		if err != nil {
			return err
		}
		handle := &sessionHandle{mw: m, sess: sess, loadedID: sess.ID}
		SetSession(c, sess)
		c.Set(contextHandleKey, handle)

		c.Response().Before(func() {
			if err := handle.commit(c); err != nil {
				m.logger().WithError(err).Error("session commit failed")
			}
		})
		return next(c)
	}
}

// RequireAuth rejects requests whose session carries no authenticated user.
func (m SessionMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		sess, ok := SessionFromContext(c)
		if !ok {
			return notAuthenticated()
		}
		if _, ok := service.SessionUserID(sess); !ok {
			return notAuthenticated()
		}
		return next(c)
	}
}

// CommitSession persists the request session now. Handlers call it before
// writing a success response so that storage failures surface as errors.
func CommitSession(c echo.Context) error {
	handle, ok := c.Get(contextHandleKey).(*sessionHandle)
	if !ok {
		return errors.New("session middleware not installed")
	}
	return handle.commit(c)
}

func (m SessionMiddleware) load(c echo.Context) (*entity.Session, error) {
	cookie, err := c.Cookie(m.cookieName())
	if err != nil || cookie.Value == "" {
		return entity.NewSession("", nil), nil
	}
	values, err := m.Sessions.Load(c.Request().Context(), cookie.Value)
	if err != nil {
		return nil, err
	}
	if values == nil {
		return entity.NewSession("", nil), nil
	}
	return entity.NewSession(cookie.Value, values), nil
}

func (h *sessionHandle) commit(c echo.Context) error {
	if h.committed {
		return nil
	}
	h.committed = true

	sess := h.sess
	if !sess.Modified() && !sess.Flushed() {
		return nil
	}
	ctx := c.Request().Context()

	if h.loadedID != "" && (sess.Flushed() || sess.Cycled() || sess.IsEmpty()) {
		if err := h.mw.Sessions.Delete(ctx, h.loadedID); err != nil {
			return err
		}
		sess.ID = ""
	}
	if sess.IsEmpty() {
		if h.loadedID != "" {
			h.mw.clearCookie(c)
		}
		return nil
	}

	if sess.ID == "" {
		id, err := utils.GenerateRandomToken(sessionIDBytes)
		if err != nil {
			return err
		}
		sess.ID = id
	}
	if err := h.mw.Sessions.Save(ctx, sess.ID, sess.Values()); err != nil {
		return err
	}
	h.mw.setCookie(c, sess.ID)
	return nil
}

func (m SessionMiddleware) setCookie(c echo.Context, value string) {
	maxAge := m.maxAge()
	c.SetCookie(&http.Cookie{
		Name:     m.cookieName(),
		Value:    value,
		Path:     "/",
		Domain:   m.CookieDomain,
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.sameSite(),
	})
}

func (m SessionMiddleware) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     m.cookieName(),
		Value:    "",
		Path:     "/",
		Domain:   m.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: m.sameSite(),
	})
}

func (m SessionMiddleware) cookieName() string {
	if m.CookieName == "" {
		return "sessionid"
	}
	return m.CookieName
}

func (m SessionMiddleware) maxAge() time.Duration {
	if m.MaxAge <= 0 {
		return 14 * 24 * time.Hour
	}
	return m.MaxAge
}

func (m SessionMiddleware) sameSite() http.SameSite {
	if m.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return m.SameSite
}

func (m SessionMiddleware) logger() logrus.FieldLogger {
	if m.Logger == nil {
		return logrus.StandardLogger()
	}
	return m.Logger
}

func notAuthenticated() *echo.HTTPError {
	message, _ := dto.ErrorMessage(service.ErrNotAuthenticated)
	return echo.NewHTTPError(http.StatusUnauthorized, message)
}
