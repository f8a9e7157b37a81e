package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/habitlog/internal/db"
	"github.com/habitlog/internal/logger"
	"github.com/habitlog/internal/service"
)

const (
	sessionUserIDKey   = "user_id"
	scopeContextKey    = "__habit_scope"
	usernameContextKey = "__username"
	loginPath          = "/accounts/login"
)

// ShowLoginPage 渲染登录页面
func (a *API) ShowLoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{
		"title": "登录",
		"next":  c.Query("next"),
	})
}

// Login 处理用户登录请求
func (a *API) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := a.accounts.Authenticate(username, password)
	if err != nil {
		status := http.StatusUnauthorized
		message := "用户名或密码错误"
		if !errors.Is(err, service.ErrInvalidCredentials) {
			logger.Error("authenticate failed", "error", err)
			status = http.StatusInternalServerError
			message = "登录失败，请稍后再试"
		}
		c.HTML(status, "login.html", gin.H{
			"title":    "登录",
			"error":    message,
			"username": username,
			"next":     c.PostForm("next"),
		})
		return
	}

	if err := a.startSession(c, user); err != nil {
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"title": "登录", "error": "会话保存失败"})
		return
	}

	c.Redirect(http.StatusFound, safeNext(c.PostForm("next")))
}

// Logout 处理用户登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		logger.Warn("clear session failed", "error", err)
	}
	c.Redirect(http.StatusFound, loginPath)
}

// ShowSignupPage 渲染注册页面
func (a *API) ShowSignupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", gin.H{"title": "注册"})
}

// Signup 注册成功后直接登录并回到首页
func (a *API) Signup(c *gin.Context) {
	input := service.RegisterInput{
		Username:        c.PostForm("username"),
		Password:        c.PostForm("password1"),
		PasswordConfirm: c.PostForm("password2"),
	}

	user, err := a.accounts.Register(input)
	if err != nil {
		status, message := signupErrorMessage(err)
		if status == http.StatusInternalServerError {
			logger.Error("register failed", "error", err)
		}
		c.HTML(status, "signup.html", gin.H{
			"title":    "注册",
			"error":    message,
			"username": input.Username,
		})
		return
	}

	logger.Info("user registered", "user_id", user.ID)

	if err := a.startSession(c, user); err != nil {
		c.HTML(http.StatusInternalServerError, "signup.html", gin.H{"title": "注册", "error": "会话保存失败"})
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// IssueToken 以用户名密码换取 API 令牌
func (a *API) IssueToken(c *gin.Context) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	user, err := a.accounts.Authenticate(payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		logger.Error("authenticate failed", "error", err)
		respondError(c, http.StatusInternalServerError, "登录失败")
		return
	}

	token, expiresAt, err := a.tokens.Issue(user.ID, a.now())
	if err != nil {
		logger.Error("issue token failed", "error", err)
		respondError(c, http.StatusInternalServerError, "签发令牌失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// ScopeRequired 解析页面请求的习惯分区：已登录用户使用自己的分区，
// 未登录时在匿名模式下使用共享分区，否则跳转登录页。
func (a *API) ScopeRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.resolveSessionScope(c) {
			c.Next()
			return
		}
		if a.allowAnonymous {
			c.Set(scopeContextKey, db.Anonymous())
			c.Next()
			return
		}

		target := loginPath
		if c.Request.Method == http.MethodGet {
			target += "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
		}
		c.Redirect(http.StatusFound, target)
		c.Abort()
	}
}

// APIScopeRequired 与 ScopeRequired 相同，但额外接受 Bearer 令牌，失败时返回 401
func (a *API) APIScopeRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearerToken(c); ok {
			userID, err := a.tokens.Parse(raw, a.now())
			if err == nil {
				_, err = a.accounts.Get(userID)
			}
			if err != nil {
				if !errors.Is(err, service.ErrInvalidToken) && !errors.Is(err, service.ErrUserNotFound) {
					logger.Error("load token user failed", "user_id", userID, "error", err)
					respondError(c, http.StatusInternalServerError, "服务器内部错误")
					c.Abort()
					return
				}
				respondError(c, http.StatusUnauthorized, "令牌无效或已过期")
				c.Abort()
				return
			}
			c.Set(scopeContextKey, db.Owned(userID))
			c.Next()
			return
		}

		if a.resolveSessionScope(c) {
			c.Next()
			return
		}
		if a.allowAnonymous {
			c.Set(scopeContextKey, db.Anonymous())
			c.Next()
			return
		}

		respondError(c, http.StatusUnauthorized, "请先登录")
		c.Abort()
	}
}

// resolveSessionScope 会话中的用户已不存在时清空会话，按未登录处理
func (a *API) resolveSessionScope(c *gin.Context) bool {
	session := sessions.Default(c)
	userID, ok := session.Get(sessionUserIDKey).(uint)
	if !ok || userID == 0 {
		return false
	}

	user, err := a.accounts.Get(userID)
	if err != nil {
		if !errors.Is(err, service.ErrUserNotFound) {
			logger.Error("load session user failed", "user_id", userID, "error", err)
			return false
		}
		logger.Warn("session user no longer exists", "user_id", userID)
		session.Clear()
		if err := session.Save(); err != nil {
			logger.Warn("clear session failed", "error", err)
		}
		return false
	}

	c.Set(scopeContextKey, db.Owned(user.ID))
	c.Set(usernameContextKey, user.Username)
	return true
}

func (a *API) startSession(c *gin.Context, user *db.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserIDKey, user.ID)
	return session.Save()
}

// scopeFrom 读取中间件写入的分区，缺失时返回无效分区，业务层会拒绝它
func scopeFrom(c *gin.Context) db.Scope {
	if value, exists := c.Get(scopeContextKey); exists {
		if scope, ok := value.(db.Scope); ok {
			return scope
		}
	}
	return db.Scope{}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// safeNext 只允许站内绝对路径；浏览器会把反斜杠当作斜杠，因此一律拒绝
func safeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || strings.Contains(next, "\\") {
		return "/"
	}

	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" {
		return "/"
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return u.RequestURI()
}

func signupErrorMessage(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrUsernameRequired):
		return http.StatusOK, "请填写用户名"
	case errors.Is(err, service.ErrUsernameInvalid):
		return http.StatusOK, "用户名只能包含字母、数字和 @/./+/-/_"
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusOK, "用户名已被占用"
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusOK, "密码至少 8 位且不能全为数字"
	case errors.Is(err, service.ErrPasswordMismatch):
		return http.StatusOK, "两次输入的密码不一致"
	default:
		return http.StatusInternalServerError, "注册失败，请稍后再试"
	}
}
