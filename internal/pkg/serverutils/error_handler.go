package serverutils

import (
	"errors"

	"concept-review-be/pkg/review"

	"github.com/gofiber/fiber/v2"
)

var ErrNotFound = errors.New("not found")

var statusByKind = map[error]int{
	review.ErrAuthRequired:     fiber.StatusUnauthorized,
	review.ErrNotReady:         fiber.StatusConflict,
	review.ErrNotVoting:        fiber.StatusConflict,
	review.ErrRegenerating:     fiber.StatusConflict,
	review.ErrSessionFinished:  fiber.StatusConflict,
	review.ErrFetchSkipped:     fiber.StatusConflict,
	review.ErrFetchFailed:      fiber.StatusBadGateway,
	review.ErrPersistFailed:    fiber.StatusBadGateway,
	review.ErrPartialAggregate: fiber.StatusBadGateway,
	review.ErrUnknownConcept:   fiber.StatusBadRequest,
	review.ErrInvalidVoteKind:  fiber.StatusBadRequest,
	review.ErrInvalidPrompt:    fiber.StatusBadRequest,
	review.ErrInvalidKey:       fiber.StatusBadRequest,
}

// StatusOf maps an error returned by a handler to an HTTP status code.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest
	}
	if errors.Is(err, ErrNotFound) {
		return fiber.StatusNotFound
	}
	if status, ok := statusByKind[review.KindOf(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// ErrorHandlerMiddleware turns handler errors into the JSON error envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		status := StatusOf(err)
		res := ErrorResponse(status, err.Error())
		if kind := review.KindOf(err); kind != nil {
			res.ErrorCode = review.Code(err)
		}
		var ve *ValidationError
		if errors.As(err, &ve) {
			res.ErrorCode = "validation_failed"
			res.Data = ve.Fields
		}
		if status == fiber.StatusInternalServerError {
			res.Message = "Internal server error"
		}
		return ctx.Status(status).JSON(res)
	}
}
