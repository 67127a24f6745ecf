// Package additem implements the add-item page controller. Two capture
// paths, barcode and camera image, converge on one enrichment and
// submission flow.
package additem

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Sachin-dot-py/Grocify/internal/domain/capture"
	domain "github.com/Sachin-dot-py/Grocify/internal/domain/inventory"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/api"
	"github.com/Sachin-dot-py/Grocify/internal/infrastructure/session"
	apperrors "github.com/Sachin-dot-py/Grocify/pkg/errors"
)

// Details is the pre-filled item form shown after a capture resolves.
// DietaryWarning never blocks submission.
type Details struct {
	Barcode        string
	Name           string
	Image          string
	ExpiryDate     string
	DietaryWarning bool
}

// Form is the final add-item submission. The expiry date is the one field
// the user must always supply or confirm.
type Form struct {
	Barcode    string `validate:"omitempty"`
	Name       string `validate:"required"`
	Image      string
	ExpiryDate string `validate:"required"`
}

// Service is the add-item page controller.
type Service struct {
	client   *api.Client
	control  *session.Controller
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates the add-item page controller.
func NewService(client *api.Client, control *session.Controller, logger *zap.Logger) *Service {
	return &Service{
		client:   client,
		control:  control,
		validate: validator.New(),
		logger:   logger,
	}
}

// Identify resolves a capture result to item details. Barcode goes through
// product lookup, image through extraction; both then run the enrichment
// call for an estimated expiry and the dietary compatibility flag. An
// unknown barcode surfaces as NOT_FOUND so the page keeps the scan flow in
// place for retry.
func (s *Service) Identify(ctx context.Context, sess *session.Session, src capture.Source) (*Details, error) {
	res, err := src.Capture(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "capture failed")
	}

	creds := s.control.Credentials(sess)
	var details Details

	switch r := res.(type) {
	case capture.Barcode:
		product, err := s.client.BarcodeLookup(ctx, creds, r.Code)
		if err != nil {
			return nil, err
		}
		details = Details{Barcode: r.Code, Name: product.Name, Image: product.Image}
	case capture.Image:
		ext, err := s.client.ExtractInfo(ctx, creds, r.Data)
		if err != nil {
			return nil, err
		}
		details = Details{Name: ext.ItemName, Image: r.Data, ExpiryDate: ext.ExpiryDate}
	default:
		return nil, apperrors.NewValidationError("unsupported capture kind")
	}

	info, err := s.client.ItemInfo(ctx, creds, details.Name)
	if err != nil {
		// Enrichment is best-effort: the user can still fill in the expiry
		// date by hand.
		s.logger.Warn("Item enrichment failed", zap.String("item", details.Name), zap.Error(err))
		return &details, nil
	}
	if details.ExpiryDate == "" {
		details.ExpiryDate = info.EstimatedExpiry
	}
	details.DietaryWarning = !info.DietaryCompatible
	return &details, nil
}

// Add validates and submits the item. A missing expiry date is a local
// validation failure: it is surfaced inline and no network call is made.
func (s *Service) Add(ctx context.Context, sess *session.Session, form Form) (*domain.Item, error) {
	if err := s.validate.Struct(form); err != nil {
		return nil, validationError(err)
	}
	return s.client.AddItem(ctx, s.control.Credentials(sess), api.AddItemRequest{
		Barcode:    form.Barcode,
		Name:       form.Name,
		Image:      form.Image,
		ExpiryDate: form.ExpiryDate,
	})
}

func validationError(err error) error {
	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		switch fieldErrs[0].Field() {
		case "ExpiryDate":
			return apperrors.NewValidationError("Please enter an expiry date")
		case "Name":
			return apperrors.NewValidationError("Item name is required")
		}
	}
	return apperrors.NewValidationError(err.Error())
}
