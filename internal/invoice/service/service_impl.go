package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/leasebook/internal/invoice/domain"
	"github.com/smallbiznis/leasebook/internal/invoice/render"
	"github.com/smallbiznis/leasebook/internal/ownercontext"
	"github.com/smallbiznis/leasebook/internal/providers/pdf"
	"github.com/smallbiznis/leasebook/pkg/db/option"
	"github.com/smallbiznis/leasebook/pkg/db/pagination"
	"github.com/smallbiznis/leasebook/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	PDF      pdf.Provider
	Renderer render.Renderer
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	pdf         pdf.Provider
	renderer    render.Renderer
	invoicerepo repository.Repository[invoicedomain.Invoice]
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		pdf:      p.PDF,
		renderer: p.Renderer,

		invoicerepo: repository.ProvideStore[invoicedomain.Invoice](p.DB),
	}
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	ownerID, err := s.ownerIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	filter := &invoicedomain.Invoice{OwnerID: ownerID, RecurringTemplateID: req.RecurringTemplateID}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	limit := req.Limit()
	options := []option.QueryOption{
		option.WithSortBy("id", true),
		option.ApplyPagination(limit),
	}
	if cursor != nil {
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, pagination.ErrInvalidPageToken
		}
		options = append(options, option.ApplyOperator("id", option.LT, cursorID))
	}

	items, err := s.invoicerepo.Find(ctx, filter, options...)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(inv *invoicedomain.Invoice) string {
		return inv.ID.String()
	})

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	return invoicedomain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	item, err := s.findOwned(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return *item, nil
}

func (s *Service) findOwned(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	ownerID, err := s.ownerIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID == 0 {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}

	item, err := s.invoicerepo.FindOne(ctx, &invoicedomain.Invoice{ID: invoiceID, OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return item, nil
}

func (s *Service) ownerIDFromContext(ctx context.Context) (snowflake.ID, error) {
	ownerID, ok := ownercontext.OwnerIDFromContext(ctx)
	if !ok {
		return 0, invoicedomain.ErrInvalidOwner
	}
	return ownerID, nil
}
