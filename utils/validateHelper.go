package utils

import (
	"context"

	"github.com/dcconcretos/remisiones_backend/config"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the shared validator instance over a tagged struct.
func ValidateStruct(obj interface{}) error {
	return validate.Struct(obj)
}

// ProcessValidationErrors flattens validator errors into field -> rule.
func ProcessValidationErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"_": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// ValidateResourceId checks that id exists, scoped to plant when non-empty.
// Returns ErrorRecordNotFound when missing.
func ValidateResourceId[T any](ctx context.Context, plantId string, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, plantId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ResourceCountWhere counts records, using WHERE plant_id = ? AND $condition.
// plant_id can be blank for cross-plant lookups.
func ResourceCountWhere[T any](ctx context.Context, plantId string, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if plantId != "" {
		dbCtx.Where("plant_id = ?", plantId)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
