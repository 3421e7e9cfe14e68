package web

import (
	"github.com/fluxohq/fluxo/pkg/services"
	"github.com/gofiber/fiber/v3"
)

func (h *APIHandlers) GetCredentials(c fiber.Ctx, callerID string) error {
	credentials, err := h.credentialService.List(c.Context(), callerID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"credentials": credentials,
	})
}

func (h *APIHandlers) GetCredential(c fiber.Ctx, callerID string) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Credential ID is required")
	}

	credential, err := h.credentialService.Get(c.Context(), callerID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(credential)
}

func (h *APIHandlers) CreateCredential(c fiber.Ctx, callerID string) error {
	var req CredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	credential, err := h.credentialService.Create(c.Context(), callerID, services.CredentialRequest{
		Title:    req.Title,
		Platform: req.Platform,
		Data:     req.Data,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(credential)
}

func (h *APIHandlers) UpdateCredential(c fiber.Ctx, callerID string) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Credential ID is required")
	}

	var req CredentialRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	credential, err := h.credentialService.Update(c.Context(), callerID, id, services.CredentialRequest{
		Title:    req.Title,
		Platform: req.Platform,
		Data:     req.Data,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(credential)
}

func (h *APIHandlers) DeleteCredential(c fiber.Ctx, callerID string) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Credential ID is required")
	}

	err := h.credentialService.Delete(c.Context(), callerID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
