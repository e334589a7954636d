package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := NotFoundf("product not found: %d", 42)
	wrapped := fmt.Errorf("add to cart: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		NotFoundf("x"):          http.StatusNotFound,
		Validationf("x"):        http.StatusBadRequest,
		InsufficientStockf("x"): http.StatusBadRequest,
		Forbiddenf("x"):         http.StatusForbidden,
		Unauthorizedf("x"):      http.StatusUnauthorized,
		Conflictf("x"):          http.StatusConflict,
	}

	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Msg)
	}

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
