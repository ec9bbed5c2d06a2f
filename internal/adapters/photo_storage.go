package adapters

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"claimtech_backend/internal/storage"
)

// PhotoStorage adapts the MinIO storage service to the assessments module's
// photo ports: signed download URLs, presigned upload URLs and object
// removal.
type PhotoStorage struct {
	svc *storage.MinIOService
}

func NewPhotoStorage(svc *storage.MinIOService) *PhotoStorage {
	return &PhotoStorage{svc: svc}
}

func (a *PhotoStorage) SignedURL(c *gin.Context, fileKey string) (string, error) {
	presigned, err := a.svc.GenerateDownloadURL(c.Request.Context(), fileKey)
	if err != nil {
		return "", err
	}
	return presigned.URL, nil
}

func (a *PhotoStorage) UploadURL(c *gin.Context, assessmentID uuid.UUID, fileName, contentType string, sizeBytes int64) (*storage.PresignedURL, error) {
	return a.svc.GenerateUploadURL(c.Request.Context(), assessmentID, fileName, contentType, sizeBytes)
}

func (a *PhotoStorage) RemoveObject(ctx context.Context, fileKey string) error {
	return a.svc.RemoveObject(ctx, fileKey)
}
