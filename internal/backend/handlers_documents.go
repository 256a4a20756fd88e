// handlers_documents.go - document upload and management handlers
package backend

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/comigor/ragchat-go/internal/api"
	"github.com/comigor/ragchat-go/internal/library"
)

const documentNotFound = "Document not found"

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.documents.List(c.Request().Context())
	if err != nil {
		return NewInternalError("Failed to list documents", err)
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewBadRequestError("Missing multipart field 'file'")
	}
	f, err := fh.Open()
	if err != nil {
		return NewInternalError("Upload failed: "+err.Error(), err)
	}
	defer f.Close()

	doc, err := s.documents.Add(c.Request().Context(), fh.Filename, f)
	if err != nil {
		var verr *library.ValidationError
		if errors.As(err, &verr) {
			return NewBadRequestError(verr.Message)
		}
		return NewInternalError("Upload failed: "+err.Error(), err)
	}
	s.metrics.uploads.Inc()
	return c.JSON(http.StatusOK, api.UploadResult{
		ID:       doc.ID,
		Filename: doc.Filename,
		Message:  fmt.Sprintf("Document '%s' uploaded successfully!", doc.Filename),
		Status:   "success",
	})
}

func (s *Server) handleGetDocument(c echo.Context) error {
	doc, err := s.documents.Get(c.Request().Context(), c.Param("id"))
	if errors.Is(err, library.ErrNotFound) {
		return NewNotFoundError(documentNotFound)
	}
	if err != nil {
		return NewInternalError("Failed to load document", err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	doc, err := s.documents.Delete(c.Request().Context(), c.Param("id"))
	if errors.Is(err, library.ErrNotFound) {
		return NewNotFoundError(documentNotFound)
	}
	if err != nil {
		return NewInternalError("Failed to delete document", err)
	}
	s.metrics.deletes.Inc()
	return c.JSON(http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Document '%s' deleted successfully", doc.Filename),
	})
}
