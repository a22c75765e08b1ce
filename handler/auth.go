package handler

import (
	"fmt"
	"net/http"

	"github.com/AnTengye/quotepo/middleware"
	"github.com/AnTengye/quotepo/pkg/logger"
	"github.com/AnTengye/quotepo/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	oauth *service.OAuthService
	store *service.SessionStore
}

func NewAuthHandler(oauth *service.OAuthService, store *service.SessionStore) *AuthHandler {
	return &AuthHandler{
		oauth: oauth,
		store: store,
	}
}

// Login starts the authorization-code flow for the current session
func (h *AuthHandler) Login(c *gin.Context) {
	sessionID := middleware.GetSessionID(c)

	state := h.oauth.NewState()
	h.store.BeginAuthorization(sessionID, state)

	logger.Info(c.Request.Context(), "redirecting to identity provider")
	c.Redirect(http.StatusFound, h.oauth.AuthCodeURL(state))
}

// Callback completes the flow: exchanges the code and adopts the first tenant
func (h *AuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := middleware.GetSessionID(c)

	expectedState := ""
	if sess := h.store.Get(sessionID); sess != nil {
		expectedState = sess.OAuthState
	}

	params := service.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
	}

	auth, err := h.oauth.Complete(ctx, params, expectedState)
	if err != nil {
		h.store.ResetAuthorization(sessionID)
		logger.Warn(ctx, "authorization failed", "error", err)
		renderError(c, err)
		return
	}

	h.store.CompleteAuthorization(sessionID, auth.AccessToken, auth.TenantID, auth.TenantName)
	logger.Info(ctx, "session authorized", "tenant_id", auth.TenantID, "tenant_name", auth.TenantName)

	c.HTML(http.StatusOK, "message.html", Page{
		Title:    "Authorized",
		Message:  fmt.Sprintf("Connected to %s.", auth.TenantName),
		Link:     "/upload",
		LinkText: "Upload a quote spreadsheet",
	})
}
