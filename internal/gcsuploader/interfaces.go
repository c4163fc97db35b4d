package gcsuploader

import (
	"context"
	"io"
)

// StorageService archives uploaded PDFs and reads them back.
type StorageService interface {
	Upload(ctx context.Context, objectName string, r io.Reader, contentType string) (string, error)
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}

// MockStorageService is a configurable StorageService for tests in other packages.
type MockStorageService struct {
	UploadFunc       func(ctx context.Context, objectName string, r io.Reader, contentType string) (string, error)
	FetchFromGCSFunc func(ctx context.Context, gcsURI string) ([]byte, error)
}

func (m *MockStorageService) Upload(ctx context.Context, objectName string, r io.Reader, contentType string) (string, error) {
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, objectName, r, contentType)
	}
	return "gs://mock-bucket/" + objectName, nil
}

func (m *MockStorageService) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	if m.FetchFromGCSFunc != nil {
		return m.FetchFromGCSFunc(ctx, gcsURI)
	}
	return nil, nil
}
