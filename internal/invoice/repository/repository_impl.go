package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/leasebook/internal/invoice/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, invoiceNumber string) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := db.WithContext(ctx).
		Where("invoice_number = ?", invoiceNumber).
		Take(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, inv *domain.Invoice) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_number"}},
			DoNothing: true,
		}).
		Create(inv)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
