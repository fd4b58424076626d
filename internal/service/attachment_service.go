package service

import (
	"context"
	"sort"
	"strings"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/lock"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var attachmentTracer = otel.Tracer("service/attachment")

// AttachmentService records metadata for receipts stored outside the
// ledger. The newest attachment of a transaction is the active one.
type AttachmentService struct {
	*base
}

func (s *AttachmentService) Create(ctx context.Context, req *domain.CreateAttachmentRequest) (*domain.Attachment, error) {
	ctx, span := attachmentTracer.Start(ctx, "AttachmentService.Create")
	defer span.End()

	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.FileName = strings.TrimSpace(req.FileName)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	tx, err := s.store.Transactions().Get(ctx, req.TransactionID)
	if err != nil {
		return nil, s.readErr("get transaction", err)
	}
	if tx == nil {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: req.TransactionID}
	}

	keys := []string{lock.WalletKey(tx.WalletID)}
	if tx.ClientID != "" {
		keys = append(keys, lock.ClientKey(tx.ClientID))
	}
	unlock, err := s.lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	a, err := s.store.Attachments().Insert(ctx, domain.Attachment{
		ID:            uuid.New().String(),
		TransactionID: tx.ID,
		FileName:      req.FileName,
		FileURL:       req.FileURL,
		MimeType:      req.MimeType,
		FileSize:      req.FileSize,
		CreatedAt:     now,
	})
	if err != nil {
		return nil, s.writeErr("insert attachment", err)
	}
	s.metrics.IncrWrite("attachments")

	updated, err := s.store.Transactions().Update(ctx, tx.ID, func(t *domain.Transaction) {
		t.AttachmentID = a.ID
		t.UpdatedAt = now
	})
	if err != nil {
		return nil, s.writeErr("link attachment", err)
	}
	if updated == nil {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: tx.ID}
	}

	s.logger.Info("attachment linked",
		zap.String("attachment_id", a.ID),
		zap.String("transaction_id", tx.ID),
		zap.String("file_name", a.FileName),
	)
	return a, nil
}

// ListByTransaction returns a transaction's attachments, newest first.
func (s *AttachmentService) ListByTransaction(ctx context.Context, transactionID string) ([]domain.Attachment, error) {
	ctx, span := attachmentTracer.Start(ctx, "AttachmentService.ListByTransaction")
	defer span.End()

	list, err := s.store.Attachments().Filter(ctx, func(a domain.Attachment) bool {
		return a.TransactionID == transactionID
	})
	if err != nil {
		return nil, s.readErr("list attachments", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}
