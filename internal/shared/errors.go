package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateFolio occurs when a generated folio already exists.
	ErrDuplicateFolio = errors.New("folio already exists")
	// ErrInvalidTransition occurs when a document state change is not allowed.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// UserSafeMessage returns a message that can be shown to API consumers.
// Unexpected errors collapse to a generic message so internals do not leak.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "El recurso solicitado no existe"
	case errors.Is(err, ErrDuplicateFolio):
		return "El folio generado ya existe, intente de nuevo"
	case errors.Is(err, ErrInvalidTransition):
		return "El cambio de estado no es válido"
	case errors.Is(err, ErrIdempotencyConflict):
		return "La operación ya fue procesada"
	default:
		return "Ocurrió un error inesperado"
	}
}
