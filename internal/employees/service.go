package employees

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db"
	"github.com/kioskpos/pos-backend/pkg/db/models"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

// Directory resolves the employee ringing up an order.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) (*Directory, error) {
	if repo == nil {
		return nil, fmt.Errorf("employees repository required")
	}
	return &Directory{repo: repo}, nil
}

func (d *Directory) WithTx(tx *gorm.DB) *Directory {
	return &Directory{repo: d.repo.WithTx(tx)}
}

func (d *Directory) FindActiveByName(ctx context.Context, name string) (*models.Employee, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employee name is required")
	}
	employee, err := d.repo.FindActiveByName(ctx, trimmed)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "employee %q not found", trimmed)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load employee")
	}
	return employee, nil
}
