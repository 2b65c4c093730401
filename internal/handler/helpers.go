package handler

import (
	"net/http"

	"labcaja/internal/apierror"
	"labcaja/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := dto.Validate(req); err != nil {
		if _, ok := err.(validator.ValidationErrors); !ok {
			_ = c.Error(err)
			return false
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(dto.FieldErrors(err)))
		return false
	}
	return true
}

// uuidParam parses a path parameter, answering 422 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, apierror.New(name+" inválido"))
		return uuid.Nil, false
	}
	return id, true
}

// writeError answers a service error. Unclassified errors are left to ErrorHandler so they
// are logged and never leak.
func writeError(c *gin.Context, err error) {
	status := apierror.StatusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		return
	}
	c.JSON(status, apierror.New(err.Error()))
}
