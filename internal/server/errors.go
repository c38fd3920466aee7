package server

import (
	"fmt"
	"net/http"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrUnknownSpecialty indicates the specialty label is not in the taxonomy index
type ErrUnknownSpecialty struct {
	Label string
}

func (e *ErrUnknownSpecialty) Error() string {
	return fmt.Sprintf("unknown specialty: %s", e.Label)
}

// ErrNoData indicates a run finished without collecting any record
type ErrNoData struct{}

func (e *ErrNoData) Error() string {
	return "no data found"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrValidation:
		return http.StatusBadRequest
	case *ErrUnknownSpecialty, *ErrNoData:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
