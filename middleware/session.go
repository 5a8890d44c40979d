package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dopemusic/dopesite/utils"
)

const (
	// ContextSessionKey stores the *utils.Session of the current request.
	ContextSessionKey = "session"
	// ContextUserIDKey stores the authenticated principal id.
	ContextUserIDKey = "user_id"

	defaultCookieName = "dopesite_session"
)

// SessionManager binds server-side sessions to clients through a signed cookie.
type SessionManager struct {
	store      utils.SessionStore
	secret     string
	ttl        time.Duration
	secure     bool
	cookieName string
	logger     *zap.Logger
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(store utils.SessionStore, secret string, ttl time.Duration, secure bool, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		store:      store,
		secret:     secret,
		ttl:        ttl,
		secure:     secure,
		cookieName: defaultCookieName,
		logger:     logger,
	}
}

// CookieName returns the name of the session cookie.
func (m *SessionManager) CookieName() string { return m.cookieName }

// Middleware loads the session of the request, or starts an anonymous one,
// and persists it after the handler when it changed.
func (m *SessionManager) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		sess := m.load(ctx)
		if sess == nil {
			sess = m.start(ctx, 0)
		}
		m.bind(ctx, sess)

		ctx.Next()

		current := Session(ctx)
		if current == nil || !current.Dirty() {
			return
		}
		if err := m.store.Save(ctx.Request.Context(), current, m.ttl); err != nil {
			m.logger.Error("session save failed", zap.String("sid", current.ID), zap.Error(err))
		}
	}
}

// Login rotates the session id and binds userID to the new session. Pending
// notices survive the rotation.
func (m *SessionManager) Login(ctx *gin.Context, userID uint) {
	old := Session(ctx)
	sess := m.start(ctx, userID)
	if old != nil {
		sess.Notices = old.Notices
		if err := m.store.Delete(ctx.Request.Context(), old.ID); err != nil {
			m.logger.Warn("session delete failed", zap.String("sid", old.ID), zap.Error(err))
		}
	}
	sess.MarkDirty()
	m.bind(ctx, sess)
}

// Logout destroys the current session and starts a fresh anonymous one.
func (m *SessionManager) Logout(ctx *gin.Context) {
	if old := Session(ctx); old != nil {
		if err := m.store.Delete(ctx.Request.Context(), old.ID); err != nil {
			m.logger.Warn("session delete failed", zap.String("sid", old.ID), zap.Error(err))
		}
	}
	m.bind(ctx, m.start(ctx, 0))
}

func (m *SessionManager) load(ctx *gin.Context) *utils.Session {
	raw, err := ctx.Cookie(m.cookieName)
	if err != nil || raw == "" {
		return nil
	}
	sid, err := utils.ParseSessionID(m.secret, raw)
	if err != nil {
		return nil
	}
	sess, err := m.store.Load(ctx.Request.Context(), sid)
	if err != nil {
		if err != utils.ErrSessionNotFound {
			m.logger.Warn("session load failed", zap.String("sid", sid), zap.Error(err))
		}
		return nil
	}
	return sess
}

// start creates a session and sets its cookie. It is not persisted until it
// becomes dirty.
func (m *SessionManager) start(ctx *gin.Context, userID uint) *utils.Session {
	sess := &utils.Session{ID: uuid.NewString(), UserID: userID}
	token, err := utils.SignSessionID(m.secret, sess.ID, m.ttl)
	if err != nil {
		m.logger.Error("session sign failed", zap.Error(err))
		return sess
	}
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(m.cookieName, token, int(m.ttl.Seconds()), "/", "", m.secure, true)
	return sess
}

func (m *SessionManager) bind(ctx *gin.Context, sess *utils.Session) {
	ctx.Set(ContextSessionKey, sess)
	if sess.Authenticated() {
		ctx.Set(ContextUserIDKey, sess.UserID)
	} else {
		ctx.Set(ContextUserIDKey, uint(0))
	}
}

// Session returns the session bound to the request, or nil outside the middleware.
func Session(ctx *gin.Context) *utils.Session {
	v, ok := ctx.Get(ContextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*utils.Session)
	return sess
}

// AddNotice queues a notice for the next rendered page of this client.
func AddNotice(ctx *gin.Context, category, message string) {
	if sess := Session(ctx); sess != nil {
		sess.AddNotice(category, message)
	}
}

// CurrentUserID returns the authenticated principal id, if any.
func CurrentUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, _ := v.(uint)
	return id, id != 0
}
