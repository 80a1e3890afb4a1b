// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"tradi/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("asset_type", validateAssetType)
		_ = v.RegisterValidation("market_type", validateMarketType)
		_ = v.RegisterValidation("exchange", validateExchange)
		_ = v.RegisterValidation("position_side", validatePositionSide)
		_ = v.RegisterValidation("trailing_stop_type", validateTrailingStopType)
	}
}

func validateAssetType(fl validator.FieldLevel) bool {
	return models.AssetType(fl.Field().String()).Valid()
}

func validateMarketType(fl validator.FieldLevel) bool {
	return models.MarketType(fl.Field().String()).Valid()
}

func validateExchange(fl validator.FieldLevel) bool {
	return models.Exchange(fl.Field().String()).Valid()
}

func validatePositionSide(fl validator.FieldLevel) bool {
	return models.PositionSide(fl.Field().String()).Valid()
}

func validateTrailingStopType(fl validator.FieldLevel) bool {
	return models.TrailingStopType(fl.Field().String()).Valid()
}
