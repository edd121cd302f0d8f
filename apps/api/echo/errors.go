package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/swanstudios/studio/core"
	"github.com/swanstudios/studio/core/contact"
	"github.com/swanstudios/studio/core/gamification"
	"github.com/swanstudios/studio/core/store"
	"github.com/swanstudios/studio/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")

	// domain errors rendered with their own message
	domainErrCodes = map[error]int{
		user.ErrNotFound: http.StatusNotFound,

		gamification.ErrProfileNotFound:         http.StatusNotFound,
		gamification.ErrSettingsNotFound:        http.StatusNotFound,
		gamification.ErrAchievementNotFound:     http.StatusNotFound,
		gamification.ErrUserAchievementNotFound: http.StatusNotFound,
		gamification.ErrRewardNotFound:          http.StatusNotFound,
		gamification.ErrRedemptionNotFound:      http.StatusNotFound,
		gamification.ErrMilestoneNotFound:       http.StatusNotFound,
		gamification.ErrWorkoutAlreadyRecorded:  http.StatusTooManyRequests,

		store.ErrItemNotFound:       http.StatusNotFound,
		store.ErrCartNotFound:       http.StatusNotFound,
		store.ErrCartItemNotFound:   http.StatusNotFound,
		store.ErrOrderNotFound:      http.StatusNotFound,
		store.ErrPaymentUnavailable: http.StatusServiceUnavailable,

		contact.ErrNotFound: http.StatusNotFound,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message, known := httpError(errors.Cause(err), translator)
		if !known {
			code = http.StatusInternalServerError
			message = http.StatusText(code)
			logger.Error(http.StatusText(code), errors.Wrap(err, http.StatusText(code)), claimedUser(ctx))
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead {
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			logger.Error("sending error response", err)
		}
	}
}

// httpError maps the cause of an error to a status code & a response body (a string or a field => message map).
// known is false for unexpected errors.
func httpError(cause error, translator ut.Translator) (code int, message interface{}, known bool) {
	switch e := cause.(type) {
	case *echo.HTTPError:
		if e == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, e.Message, true
		}
		if inner, ok := e.Internal.(*echo.HTTPError); ok {
			e = inner
		}
		return e.Code, e.Message, true

	case validator.ValidationErrors:
		fields := make(map[string]string, len(e))
		for _, fe := range e {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return http.StatusBadRequest, fields, true

	case *core.ValidationError:
		if len(e.Fields) == 0 {
			return http.StatusBadRequest, e.Error(), true
		}
		fields := make(map[string]string, len(e.Fields))
		for _, fe := range e.Fields {
			fields[fe.Field] = fe.Error
		}
		return http.StatusBadRequest, fields, true
	}

	if c, ok := domainErrCodes[cause]; ok {
		return c, cause.Error(), true
	}
	return 0, nil, false
}

// claimedUser identifies the requester in error reports, from the JWT claims only.
func claimedUser(ctx echo.Context) user.User {
	var usr user.User
	if claims, err := getContextClaims(ctx); err == nil {
		usr.ID = claims.Subject
		usr.Username = claims.Username
		usr.Email = claims.Email
	}
	return usr
}
