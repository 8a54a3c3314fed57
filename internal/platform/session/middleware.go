package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/auth"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/requestctx"
)

type sessionContextKey string

const requestSessionKey sessionContextKey = "storefront/session"

// Store abstracts the session manager for middleware integration.
type Store interface {
	Load(*http.Request) (*Session, error)
	New() *Session
	Save(http.ResponseWriter, *Session) error
	Destroy(http.ResponseWriter)
}

// Middleware attaches the decoded session to the request context and writes the
// cookie back just before the response header is sent. A signed-in session user
// becomes the request identity unless a bearer token later overrides it.
func Middleware(store Store) func(http.Handler) http.Handler {
	if store == nil {
		panic("session store is required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := requestctx.Logger(r.Context())

			sess, err := store.Load(r)
			if errors.Is(err, ErrExpired) {
				logger.Debug("session expired: resetting")
				store.Destroy(w)
				sess = store.New()
			} else if err != nil || sess == nil {
				if err != nil {
					logger.Warn("session load failed", zap.Error(err))
				}
				sess = store.New()
			}

			ctx := context.WithValue(r.Context(), requestSessionKey, sess)
			ctx = requestctx.WithSessionID(ctx, sess.ID())
			if user := sess.User(); user != nil {
				ctx = auth.WithIdentity(ctx, &auth.Identity{
					UID:         user.UID,
					Email:       user.Email,
					DisplayName: user.DisplayName,
					Source:      auth.SourceSession,
				})
			}

			sw := &saveOnWrite{ResponseWriter: w, save: func() {
				if err := store.Save(w, sess); err != nil {
					logger.Error("session save failed", zap.Error(err))
				}
			}}
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.commit()
		})
	}
}

// FromContext retrieves the session attached to this request.
func FromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(requestSessionKey).(*Session)
	return sess, ok && sess != nil
}

// saveOnWrite persists the session cookie exactly once, before headers are flushed.
type saveOnWrite struct {
	http.ResponseWriter
	once sync.Once
	save func()
}

func (s *saveOnWrite) commit() {
	s.once.Do(s.save)
}

func (s *saveOnWrite) WriteHeader(status int) {
	s.commit()
	s.ResponseWriter.WriteHeader(status)
}

func (s *saveOnWrite) Write(b []byte) (int, error) {
	s.commit()
	return s.ResponseWriter.Write(b)
}

func (s *saveOnWrite) Flush() {
	s.commit()
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *saveOnWrite) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
