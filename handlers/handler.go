package handlers

import (
	"errors"
	"net/http"
	"strconv"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/marketgrid/storefront-backend-go/config"
	"github.com/marketgrid/storefront-backend-go/imagestore"
	"github.com/marketgrid/storefront-backend-go/mailer"
	"github.com/marketgrid/storefront-backend-go/store"
)

// Handler bundles the dependencies of all HTTP handlers.
type Handler struct {
	Products store.ProductStore
	Orders   store.OrderStore
	Users    store.UserStore
	Settings store.SettingsStore
	Mailer   mailer.Mailer
	Images   imagestore.Store
	Cfg      config.Config

	validate *validatorv10.Validate
}

func New(products store.ProductStore, orders store.OrderStore, users store.UserStore, settings store.SettingsStore, m mailer.Mailer, images imagestore.Store, cfg config.Config) *Handler {
	return &Handler{
		Products: products,
		Orders:   orders,
		Users:    users,
		Settings: settings,
		Mailer:   m,
		Images:   images,
		Cfg:      cfg,
		validate: validatorv10.New(),
	}
}

// bindAndValidate binds the JSON body into out and runs struct validation.
// On failure it writes a 400 with field-level details and returns a non-nil
// error so the handler can short-circuit.
func (h *Handler) bindAndValidate(c echo.Context, out interface{}) error {
	if err := c.Bind(out); err != nil {
		_ = c.JSON(http.StatusBadRequest, map[string]string{
			"error":   "invalid_request_body",
			"message": err.Error(),
		})
		return err
	}

	if err := h.validate.Struct(out); err != nil {
		_ = c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}

// domainError writes a 400 with a machine-readable code.
func domainError(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error":   code,
		"message": message,
	})
}

// storeError maps a store failure to the HTTP error taxonomy. 503 is
// distinguished from 500 so callers know the failure is retryable.
func storeError(c echo.Context, err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not_found", "message": notFoundMsg})
	case errors.Is(err, store.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "service_unavailable", "message": "datastore unreachable, retry later"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}
}

// currentUser pulls the authenticated user id out of the request context.
func currentUser(c echo.Context) (primitive.ObjectID, bool) {
	id, ok := c.Get("userID").(primitive.ObjectID)
	return id, ok
}

func isAdmin(c echo.Context) bool {
	admin, _ := c.Get("isAdmin").(bool)
	return admin
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("must be positive")
	}
	return n, nil
}
