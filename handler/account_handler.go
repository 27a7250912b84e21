package handler

import (
	"net/http"

	"github.com/cmdf/pdfnote-be/service"
	"github.com/cmdf/pdfnote-be/types"
	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	userService service.UserService
}

func NewAccountHandler(userService service.UserService) *AccountHandler {
	return &AccountHandler{
		userService: userService,
	}
}

func (h *AccountHandler) HandleSignup(c *gin.Context) {
	var req types.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	user, err := h.userService.Signup(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *AccountHandler) HandleLogin(c *gin.Context) {
	var req types.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	pair, err := h.userService.Login(c.Request.Context(), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AccountHandler) HandleLogout(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh is required")
		return
	}
	if err := h.userService.Logout(c.Request.Context(), userID, req.Refresh); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusResetContent)
}

func (h *AccountHandler) HandleRefresh(c *gin.Context) {
	var req types.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh is required")
		return
	}
	resp, err := h.userService.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AccountHandler) HandleVerify(c *gin.Context) {
	var req types.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "token is required")
		return
	}
	if err := h.userService.Verify(c.Request.Context(), req.Token); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

func (h *AccountHandler) HandleMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.userService.Me(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) HandleUpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) HandleChangePassword(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "old_password and new_password are required")
		return
	}
	if err := h.userService.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.DetailResponse{Detail: "Password updated successfully."})
}
