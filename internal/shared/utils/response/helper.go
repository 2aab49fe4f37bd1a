package response

import (
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/apperrors"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps a domain error to its HTTP status and error kind.
func RespondError(c *gin.Context, err error) {
	RespondJSON(c, "error", apperrors.HTTPStatus(err), err.Error(), nil, gin.H{
		"kind": apperrors.KindOf(err).String(),
	})
}
