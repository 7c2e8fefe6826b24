package httpx

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(""))

	var target struct{ Name string }
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrEmptyBody)
}

func TestDecodeJSONValidBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"Name":"alpha"}`))

	var target struct{ Name string }
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, "alpha", target.Name)
}

func TestDecodeJSONMalformedBody(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"Name":`))

	var target struct{ Name string }
	err := DecodeJSON(req, &target)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrEmptyBody)
}
