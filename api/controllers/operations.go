package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom-backend/api/middleware"
	"github.com/stockroomhq/stockroom-backend/api/responses"
	"github.com/stockroomhq/stockroom-backend/api/validators"
	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/internal/ledger"
	"github.com/stockroomhq/stockroom-backend/internal/reports"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom-backend/pkg/errors"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	"github.com/stockroomhq/stockroom-backend/pkg/pagination"
)

type applyOperationRequest struct {
	ItemID        string     `json:"item_id" validate:"required,uuid"`
	Type          string     `json:"type" validate:"required"`
	Quantity      int        `json:"quantity" validate:"required"`
	Notes         *string    `json:"notes"`
	OperationDate *time.Time `json:"operation_date"`
}

// Minimum role required to apply each operation type. Receipts and issues are
// everyday worker actions; corrections need a manager, and reservations bind
// stock to orders so only admins may place or lift them.
var operationMinRole = map[enums.OperationType]enums.UserRole{
	enums.OperationTypeIn:          enums.UserRoleWorker,
	enums.OperationTypeOut:         enums.UserRoleWorker,
	enums.OperationTypeTransfer:    enums.UserRoleManager,
	enums.OperationTypeAdjustment:  enums.UserRoleManager,
	enums.OperationTypeReservation: enums.UserRoleAdmin,
	enums.OperationTypeRelease:     enums.UserRoleAdmin,
}

// ApplyOperation executes one stock operation against a lot.
func ApplyOperation(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var req applyOperationRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID, err := uuid.Parse(req.ItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		opType, err := enums.ParseOperationType(req.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operation type"))
			return
		}

		role := enums.UserRole(middleware.RoleFromContext(r.Context()))
		if minRole, ok := operationMinRole[opType]; ok && !role.AtLeast(minRole) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden,
				fmt.Sprintf("%s operations require %s role", opType, minRole)))
			return
		}

		var operationDate time.Time
		if req.OperationDate != nil {
			operationDate = *req.OperationDate
		}

		result, err := svc.Apply(r.Context(), inventory.ApplyInput{
			ItemID:        itemID,
			Type:          opType,
			Quantity:      req.Quantity,
			Notes:         req.Notes,
			OperationDate: operationDate,
			ActorID:       middleware.UserUUIDFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// ListOperations returns a filtered, cursor-paginated slice of the ledger.
func ListOperations(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := ledgerFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.ListAll(r.Context(), *filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// ExportOperations streams the filtered ledger as a CSV attachment.
func ExportOperations(exporter reports.Exporter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if exporter == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "export service unavailable"))
			return
		}

		filter, err := ledgerFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", reports.ExportFilename(time.Now().UTC())))

		if err := exporter.ExportOperationsCSV(r.Context(), *filter, w); err != nil {
			// Headers are already sent; log and cut the stream.
			if logg != nil {
				logg.Error(r.Context(), "csv export aborted", err)
			}
		}
	}
}

func ledgerFilterFromQuery(r *http.Request) (*ledger.Filter, error) {
	var filter ledger.Filter

	productID, err := validators.ParseQueryUUID(r, "product_id")
	if err != nil {
		return nil, err
	}
	filter.ProductID = productID

	itemID, err := validators.ParseQueryUUID(r, "item_id")
	if err != nil {
		return nil, err
	}
	filter.ItemID = itemID

	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		opType, err := enums.ParseOperationType(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid operation type")
		}
		filter.Type = &opType
	}

	from, err := validators.ParseQueryTime(r, "from")
	if err != nil {
		return nil, err
	}
	filter.From = from

	to, err := validators.ParseQueryTime(r, "to")
	if err != nil {
		return nil, err
	}
	filter.To = to

	return &filter, nil
}
