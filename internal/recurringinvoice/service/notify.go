package service

import (
	"context"

	"github.com/smallbiznis/leasebook/internal/config"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/smallbiznis/leasebook/internal/providers/email"
	"go.uber.org/zap"
)

const (
	notifyStageRender = "render"
	notifyStageSend   = "send"
)

// notify emails the new invoice to the tenant with the PDF attached. It never
// fails the generation: errors are logged and counted.
func (s *Service) notify(ctx context.Context, log *zap.Logger, cfg config.RecurringConfig, inv *invoicedomain.Invoice) {
	if !cfg.Notify.Enabled || s.email == nil || inv.TenantEmail == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Notify.Timeout)
	defer cancel()

	log = log.With(zap.String("invoice_number", inv.InvoiceNumber))

	msg, err := s.buildMessage(ctx, cfg, inv)
	if err != nil {
		s.metrics.RecordNotificationFailed(ctx, notifyStageRender)
		log.Warn("invoice notification render failed", zap.Error(err))
		return
	}

	if err := s.email.Send(ctx, msg); err != nil {
		s.metrics.RecordNotificationFailed(ctx, notifyStageSend)
		log.Warn("invoice notification send failed", zap.Error(err))
		return
	}
	log.Debug("invoice notification sent")
}

func (s *Service) buildMessage(ctx context.Context, cfg config.RecurringConfig, inv *invoicedomain.Invoice) (email.Message, error) {
	subject, err := s.renderer.RenderSubject(cfg.Notify.Subject, inv)
	if err != nil {
		return email.Message{}, err
	}
	html, err := s.renderer.RenderHTML(inv)
	if err != nil {
		return email.Message{}, err
	}
	doc, err := s.invoiceSvc.RenderPDF(ctx, inv)
	if err != nil {
		return email.Message{}, err
	}

	return email.Message{
		To:      []string{inv.TenantEmail},
		Subject: subject,
		HTML:    html,
		Attachments: []email.Attachment{{
			FileName:    doc.FileName,
			ContentType: doc.ContentType,
			Content:     doc.Content,
		}},
	}, nil
}
