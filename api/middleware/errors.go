package middleware

import (
	"context"
	"net/http"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/sirupsen/logrus"
)

// Errors renders handler errors. Errors that know their response are sent as
// is; anything else becomes a generic 500 and only the log keeps the detail.
func Errors(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			err := handler(ctx, w, r)
			if err == nil {
				return nil
			}

			fields := logrus.Fields{
				"req_id":  ContextRequestID(ctx),
				"message": err,
			}
			if f, ok := weberr.Fields(err); ok {
				for k, v := range f {
					fields[k] = v
				}
			}

			body, code, ok := weberr.Response(err)
			if !ok {
				body, code, _ = weberr.Response(weberr.InternalError(err))
			}

			entry := log.WithFields(fields)
			if code >= http.StatusInternalServerError {
				entry.Error("ERROR")
			} else {
				entry.Warn("request rejected")
			}

			return web.Respond(ctx, w, body, code)
		}
		return h
	}
	return m
}
