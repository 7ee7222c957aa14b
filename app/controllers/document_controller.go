package controllers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// allowed onboarding document types, mirroring the processor's KYC set
var allowedDocumentTypes = map[string]bool{
	"charter":           true,
	"registration":      true,
	"bank_details":      true,
	"beneficiary_proof": true,
	"other":             true,
}

// HandleMerchantDocumentUpload stores one onboarding document for a merchant
func HandleMerchantDocumentUpload(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}

	docType := strings.TrimSpace(c.FormValue("type"))
	if docType == "" {
		docType = "other"
	}
	if !allowedDocumentTypes[docType] {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "unsupported document type")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "file is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "could not read upload")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	meta, err := partnerService().UploadDocument(ctx, id, docType, fileHeader.Filename, contentType, fileHeader.Size, file)
	if err != nil {
		return domainError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(meta)
}

// HandleMerchantDocumentDownload streams a stored onboarding document
func HandleMerchantDocumentDownload(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", err.Error())
	}
	docID := strings.TrimSpace(c.Params("docID"))
	if docID == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "invalid docID")
	}

	ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
	defer cancel()

	body, contentType, err := partnerService().DocumentContent(ctx, id, docID)
	if err != nil {
		return domainError(c, err)
	}

	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	return c.SendStream(body)
}
