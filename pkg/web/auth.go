package web

import (
	"strings"

	"github.com/fluxohq/fluxo/pkg/services"
	"github.com/gofiber/fiber/v3"
)

// RequireAuth verifies the Authorization bearer token and invokes next with
// the caller id. Identity flows through the handler signature, never through
// request-scoped mutation.
func (h *APIHandlers) RequireAuth(next AuthedHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get("Authorization")

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return unauthorized(c, "missing bearer token")
		}

		callerID, err := h.authService.VerifyToken(c.Context(), token)
		if err != nil {
			return handleServiceError(c, err)
		}

		return next(c, callerID)
	}
}

func (h *APIHandlers) Signup(c fiber.Ctx) error {
	var req SignupRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	user, err := h.authService.Signup(c.Context(), services.SignupRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *APIHandlers) GetCurrentUser(c fiber.Ctx, callerID string) error {
	user, err := h.authService.CurrentUser(c.Context(), callerID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(user)
}

func (h *APIHandlers) Signin(c fiber.Ctx) error {
	var req SigninRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	token, user, err := h.authService.Signin(c.Context(), req.Email, req.Password)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TokenResponse{
		Token: token,
		User:  user,
	})
}
