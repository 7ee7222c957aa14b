package partner

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/fundlink/fundlink/app/models"
	"github.com/fundlink/fundlink/internal/pkg/docstore"
)

// SetDocumentStore attaches the S3 document store. Without one, document
// operations fail with a DomainStateError instead of panicking; document
// storage is optional per deployment.
func (s *Service) SetDocumentStore(store *docstore.Store, cfg *docstore.Config) {
	s.docs = store
	s.docsCfg = cfg
}

// UploadDocument stores one onboarding document (KYC scan, contract) and
// records its metadata on the merchant row.
func (s *Service) UploadDocument(ctx context.Context, merchantID uint, docType, fileName, contentType string, size int64, body io.Reader) (*models.MerchantDocumentMeta, error) {
	if s.docs == nil {
		return nil, &DomainStateError{Message: "document storage is not configured"}
	}
	if docType == "" {
		return nil, &DomainStateError{Message: "document type is required"}
	}

	m, err := s.repo.GetMerchant(merchantID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(m.OrganizationID)
	defer unlock()

	docID := uuid.New().String()
	key := s.docsCfg.ObjectKey(m.ID, docType, docID, fileName)
	if err := s.docs.Put(ctx, key, body, size, contentType); err != nil {
		return nil, err
	}

	now := time.Now()
	meta := models.MerchantDocumentMeta{
		ID:          docID,
		Type:        docType,
		Status:      "uploaded",
		StorageKey:  key,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		UploadedAt:  &now,
	}
	if err := m.SetDocuments(append(m.Documents(), meta)); err != nil {
		return nil, err
	}
	if err := s.repo.SaveMerchant(m); err != nil {
		return nil, err
	}
	return &meta, nil
}

// DocumentContent streams one stored document by its metadata id.
func (s *Service) DocumentContent(ctx context.Context, merchantID uint, docID string) (io.ReadCloser, string, error) {
	if s.docs == nil {
		return nil, "", &DomainStateError{Message: "document storage is not configured"}
	}

	m, err := s.repo.GetMerchant(merchantID)
	if err != nil {
		return nil, "", err
	}
	for _, doc := range m.Documents() {
		if doc.ID == docID && doc.StorageKey != "" {
			return s.docs.Get(ctx, doc.StorageKey)
		}
	}
	return nil, "", &UnknownEntityError{Kind: "document", ExternalID: docID}
}
