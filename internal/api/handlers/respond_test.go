package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"example.com/grocery/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{services.ErrNotFound, http.StatusNotFound},
		{errors.WithMessage(services.ErrNotFound, "delivery 4"), http.StatusNotFound},
		{services.ErrInvalidID, http.StatusBadRequest},
		{services.ErrBadRequest, http.StatusBadRequest},
		{services.ErrInvalidTransition, http.StatusConflict},
		{errors.WithMessagef(services.ErrInvalidTransition, "%s -> %s", "Completed", "InProgress"), http.StatusConflict},
		{errors.New("database down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

		respondError(c, tc.err)
		require.Equal(t, tc.status, w.Code, "error: %v", tc.err)
	}
}

func TestPathIDRejectsNonNumeric(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	_, ok := pathID(c, "id")
	require.False(t, ok)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
