package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
)

// ListDocuments returns every document known to the backend. The result is
// never nil.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := c.Request(ctx, "/api/v1/documents", nil, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// GetDocument returns the metadata of one document.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	if err := c.Request(ctx, "/api/v1/documents/"+url.PathEscape(id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// UploadDocument sends r as the multipart field "file".
func (c *Client) UploadDocument(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	form := NewForm()
	if err := form.AddFile("file", filename, r); err != nil {
		return nil, err
	}
	var res UploadResult
	err := c.Request(ctx, "/api/v1/documents/upload", &RequestOptions{
		Method: http.MethodPost,
		Body:   form,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UploadFile opens path and uploads it under its base name.
func (c *Client) UploadFile(ctx context.Context, path string) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.UploadDocument(ctx, filepath.Base(path), f)
}

// DeleteDocument removes a document. Any response body is ignored.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.Request(ctx, "/api/v1/documents/"+url.PathEscape(id), &RequestOptions{
		Method: http.MethodDelete,
	}, nil)
}
