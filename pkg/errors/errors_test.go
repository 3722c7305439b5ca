package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCodeSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrTrackNotFound, http.StatusNotFound},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrWorkerUnavailable, http.StatusServiceUnavailable},
		{ErrWorkerFailed, http.StatusServiceUnavailable},
		{ErrTimeout, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("something else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatusCode(tc.err); got != tc.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestHTTPStatusCodeAppError(t *testing.T) {
	appErr := New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad track payload")
	if got := HTTPStatusCode(appErr); got != http.StatusUnprocessableEntity {
		t.Errorf("HTTPStatusCode = %d, want explicit AppError code", got)
	}
	if got := HTTPStatusCode(fmt.Errorf("handler: %w", appErr)); got != http.StatusUnprocessableEntity {
		t.Errorf("wrapped AppError = %d, want %d", got, http.StatusUnprocessableEntity)
	}
}
