package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/marketgrid/storefront-backend-go/models"
)

// GetProfile returns the authenticated user's profile.
func (h *Handler) GetProfile(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	user, err := h.Users.Get(c.Request().Context(), userID)
	if err != nil {
		return storeError(c, err, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

type UpdateProfileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateProfile updates the mutable profile fields. Email and verification
// state are not editable here.
func (h *Handler) UpdateProfile(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request_body"})
	}

	ctx := c.Request().Context()
	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		return storeError(c, err, "user not found")
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if err := h.Users.Update(ctx, user); err != nil {
		return storeError(c, err, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

// ListAddresses returns the user's saved addresses.
func (h *Handler) ListAddresses(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	user, err := h.Users.Get(c.Request().Context(), userID)
	if err != nil {
		return storeError(c, err, "user not found")
	}
	return c.JSON(http.StatusOK, user.Addresses)
}

type AddressRequest struct {
	Type       string `json:"type" validate:"required,oneof=shipping billing"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	Country    string `json:"country" validate:"required"`
	PostalCode string `json:"postalCode"`
	IsDefault  bool   `json:"isDefault"`
}

// AddAddress appends a new address; marking it default clears the flag on
// the others.
func (h *Handler) AddAddress(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	var req AddressRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		return storeError(c, err, "user not found")
	}

	address := models.Address{
		ID:         primitive.NewObjectID(),
		Type:       req.Type,
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		Country:    req.Country,
		PostalCode: req.PostalCode,
		IsDefault:  req.IsDefault,
	}
	if address.IsDefault {
		for i := range user.Addresses {
			user.Addresses[i].IsDefault = false
		}
	}
	user.Addresses = append(user.Addresses, address)

	if err := h.Users.Update(ctx, user); err != nil {
		return storeError(c, err, "user not found")
	}
	return c.JSON(http.StatusCreated, address)
}

// UpdateAddress replaces an existing address by id.
func (h *Handler) UpdateAddress(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	addressID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	var req AddressRequest
	if err := h.bindAndValidate(c, &req); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		return storeError(c, err, "user not found")
	}

	found := false
	for i := range user.Addresses {
		if user.Addresses[i].ID == addressID {
			if req.IsDefault {
				for j := range user.Addresses {
					user.Addresses[j].IsDefault = false
				}
			}
			user.Addresses[i] = models.Address{
				ID:         addressID,
				Type:       req.Type,
				Street:     req.Street,
				City:       req.City,
				State:      req.State,
				Country:    req.Country,
				PostalCode: req.PostalCode,
				IsDefault:  req.IsDefault,
			}
			found = true
			break
		}
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not_found", "message": "address not found"})
	}

	if err := h.Users.Update(ctx, user); err != nil {
		return storeError(c, err, "user not found")
	}
	return c.JSON(http.StatusOK, user.Addresses)
}

// DeleteAddress removes an address by id.
func (h *Handler) DeleteAddress(c echo.Context) error {
	userID, ok := currentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
	}

	addressID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_id"})
	}

	ctx := c.Request().Context()
	user, err := h.Users.Get(ctx, userID)
	if err != nil {
		return storeError(c, err, "user not found")
	}

	kept := user.Addresses[:0]
	found := false
	for _, a := range user.Addresses {
		if a.ID == addressID {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not_found", "message": "address not found"})
	}
	user.Addresses = kept

	if err := h.Users.Update(ctx, user); err != nil {
		return storeError(c, err, "user not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "address deleted"})
}
