package handlers

import (
	"github.com/gin-gonic/gin"

	"lms/internal/core/security"
	"lms/internal/domain/auth"
	"lms/internal/infrastructure/http/v1/dto"
	"lms/internal/infrastructure/http/v1/middleware"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

func sessionMeta(c *gin.Context) auth.SessionMeta {
	return auth.SessionMeta{UserAgent: c.Request.UserAgent(), IPAddress: c.ClientIP()}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !h.BindJSON(c, &req) {
		return
	}
	user, err := h.service.Register(c.Request.Context(), req.ToAuthRequest())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromUser(user))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}
	tokens, user, err := h.service.Login(c.Request.Context(), req.ToCredentials(), sessionMeta(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LoginResponse{Tokens: dto.FromTokenPair(tokens), User: dto.FromUser(user)})
}

// RequestCode handles POST /auth/code. Unknown addresses get the same answer.
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req dto.EmailRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.RequestLoginCode(c.Request.Context(), req.Email); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true, Message: "if the address is registered a code was sent"})
}

// LoginWithCode handles POST /auth/code/login
func (h *AuthHandler) LoginWithCode(c *gin.Context) {
	var req dto.CodeLoginRequest
	if !h.BindJSON(c, &req) {
		return
	}
	tokens, user, err := h.service.LoginWithCode(c.Request.Context(), req.Email, req.Code, sessionMeta(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LoginResponse{Tokens: dto.FromTokenPair(tokens), User: dto.FromUser(user)})
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshTokenRequest
	if !h.BindJSON(c, &req) {
		return
	}
	tokens, err := h.service.Refresh(c.Request.Context(), req.RefreshToken, sessionMeta(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTokenPair(tokens))
}

// VerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.TokenRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true})
}

// ForgotPassword handles POST /auth/password/forgot
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.EmailRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true, Message: "if the address is registered a reset link was sent"})
}

// ResetPassword handles POST /auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := h.CallerID(c)
	if !ok {
		return
	}
	if err := h.service.Logout(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := h.CallerID(c)
	if !ok {
		return
	}
	user, err := h.service.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromUser(user))
}

// RequestVerification handles POST /auth/verify-email/request
func (h *AuthHandler) RequestVerification(c *gin.Context) {
	userID, ok := h.CallerID(c)
	if !ok {
		return
	}
	if err := h.service.RequestEmailVerification(c.Request.Context(), userID); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true})
}

// AssignRole handles POST /auth/assign-role
func (h *AuthHandler) AssignRole(c *gin.Context) {
	var req dto.AssignRoleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	userID, ok := parseUUID(h.BaseHandler, c, "userId", req.UserID)
	if !ok {
		return
	}
	if err := h.service.AssignRole(c.Request.Context(), userID, req.RoleCode); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true, Message: "role assigned"})
}

// RevokeRole handles POST /auth/revoke-role
func (h *AuthHandler) RevokeRole(c *gin.Context) {
	var req dto.AssignRoleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	userID, ok := parseUUID(h.BaseHandler, c, "userId", req.UserID)
	if !ok {
		return
	}
	if err := h.service.RevokeRole(c.Request.Context(), userID, req.RoleCode); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.SuccessResponse{Success: true, Message: "role revoked"})
}

// CreateRole handles POST /auth/roles
func (h *AuthHandler) CreateRole(c *gin.Context) {
	var req dto.CreateRoleRequest
	if !h.BindJSON(c, &req) {
		return
	}
	role, err := h.service.CreateRole(c.Request.Context(), req.Code, req.Name, req.Description)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, role)
}

// ListRoles handles GET /auth/roles
func (h *AuthHandler) ListRoles(c *gin.Context) {
	roles, err := h.service.ListRoles(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: roles})
}

// ListPermissions handles GET /auth/permissions
func (h *AuthHandler) ListPermissions(c *gin.Context) {
	perms, err := h.service.ListPermissions(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse{Items: perms})
}

// ListUsers handles GET /auth/users
func (h *AuthHandler) ListUsers(c *gin.Context) {
	f := auth.UserFilter{
		Search:   c.Query("search"),
		RoleCode: c.Query("role"),
		Limit:    min(max(h.ParseIntQuery(c, "limit", 50), 1), maxPageSize),
		Offset:   max(h.ParseIntQuery(c, "offset", 0), 0),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		f.IsActive = &active
	}
	if raw := c.Query("organizationId"); raw != "" {
		orgID, ok := parseUUID(h.BaseHandler, c, "organizationId", raw)
		if !ok {
			return
		}
		f.OrganizationID = &orgID
	}
	users, total, err := h.service.ListUsers(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	items := make([]*dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.FromUser(&users[i]))
	}
	h.OK(c, dto.ListResponse{Items: items, TotalCount: int64(total), Limit: f.Limit, Offset: f.Offset})
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/register", h.Register)
	public.POST("/login", h.Login)
	public.POST("/code", h.RequestCode)
	public.POST("/code/login", h.LoginWithCode)
	public.POST("/refresh", h.Refresh)
	public.POST("/verify-email", h.VerifyEmail)
	public.POST("/password/forgot", h.ForgotPassword)
	public.POST("/password/reset", h.ResetPassword)

	protected.POST("/logout", h.Logout)
	protected.GET("/me", h.Me)
	protected.POST("/verify-email/request", h.RequestVerification)

	manage := middleware.RequirePermission(security.Perm("roles", security.ActionManage))
	protected.GET("/roles", h.ListRoles)
	protected.GET("/permissions", h.ListPermissions)
	protected.POST("/roles", manage, h.CreateRole)
	protected.POST("/assign-role", manage, h.AssignRole)
	protected.POST("/revoke-role", manage, h.RevokeRole)
	protected.GET("/users", middleware.RequirePermission(security.Perm("users", security.ActionRead)), h.ListUsers)
}
