package blob

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
)

// HandleServe serves the objects of m behind the links from SignedURL. The
// object key is read from the "key" route parameter.
func HandleServe(m *Memory) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		key := web.Param(r, "key")
		q := r.URL.Query()

		if !m.Valid(key, q.Get("expires"), q.Get("signature"), time.Now()) {
			return weberr.Forbidden(errors.New("invalid or expired link"))
		}

		data, ct, err := m.Get(key)
		if errors.Is(err, ErrNotFound) {
			return weberr.NotFound(err)
		}
		if err != nil {
			return err
		}

		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(data)
		return err
	}
}
