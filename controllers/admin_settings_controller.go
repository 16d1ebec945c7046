package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/andar-app/andar_backend/middleware"
	"github.com/andar-app/andar_backend/models"
	"github.com/andar-app/andar_backend/repositories"
)

// AdminSettingsController manages gateway credentials and payment settings
type AdminSettingsController struct {
	settings *repositories.SettingsRepository
}

// NewAdminSettingsController creates a new admin settings controller
func NewAdminSettingsController(db *mongo.Client) *AdminSettingsController {
	return &AdminSettingsController{
		settings: repositories.NewSettingsRepository(db),
	}
}

// GetPaymentSettings returns the current payment configuration. Secrets are
// masked before leaving the server.
func (c *AdminSettingsController) GetPaymentSettings(ctx echo.Context) error {
	if !isAdmin(ctx) {
		return forbidden(ctx)
	}

	settings, err := c.settings.GetPaymentSettings(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load payment settings",
		})
	}

	settings.MercadoPago.AccessToken = maskSecret(settings.MercadoPago.AccessToken)
	settings.Mobbex.APIKey = maskSecret(settings.Mobbex.APIKey)
	settings.Mobbex.AccessToken = maskSecret(settings.Mobbex.AccessToken)

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment settings retrieved successfully",
		Data:    settings,
	})
}

// UpdatePaymentSettings replaces the payment configuration
func (c *AdminSettingsController) UpdatePaymentSettings(ctx echo.Context) error {
	if !isAdmin(ctx) {
		return forbidden(ctx)
	}

	var request models.PaymentSettingsRequest
	if err := ctx.Bind(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request",
		})
	}
	if err := ctx.Validate(&request); err != nil {
		return ctx.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	settings, err := c.settings.UpdatePaymentSettings(ctx.Request().Context(), &request)
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update payment settings",
		})
	}

	settings.MercadoPago.AccessToken = maskSecret(settings.MercadoPago.AccessToken)
	settings.Mobbex.APIKey = maskSecret(settings.Mobbex.APIKey)
	settings.Mobbex.AccessToken = maskSecret(settings.Mobbex.AccessToken)

	return ctx.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payment settings updated successfully",
		Data:    settings,
	})
}

func isAdmin(ctx echo.Context) bool {
	claims := middleware.GetUserFromToken(ctx)
	return claims != nil && claims.UserType == "admin"
}

func forbidden(ctx echo.Context) error {
	return ctx.JSON(http.StatusForbidden, models.Response{
		Status:  http.StatusForbidden,
		Message: "Admin access required",
	})
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}
