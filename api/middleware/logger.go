package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/sirupsen/logrus"
	"github.com/zenazn/goji/web/mutil"
)

func Logger(log logrus.FieldLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			log := log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteaddr": r.RemoteAddr,
			})

			if rid := ContextRequestID(ctx); rid != "" {
				log = log.WithField("req_id", rid)
			}
			if id := identity.FromContext(ctx); id.ClientID != "" {
				log = log.WithField("client_id", id.ClientID)
			}

			log.Debug("started")
			start := time.Now().UTC()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			log = log.WithFields(logrus.Fields{
				"statuscode": lw.Status(),
				"bytes":      lw.BytesWritten(),
				"since":      time.Since(start).String(),
			})
			log.Info("completed")
			return err
		}
		return h
	}
	return m
}
