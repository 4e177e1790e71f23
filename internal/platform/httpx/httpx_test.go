package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestRespondErrorUsesCodeStatusAndDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, NewError(CodeSubtotalInvalid, "subtotal must be positive").WithDetails([]string{"subtotal"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VAL_001", env.Error.Code)
	assert.Equal(t, []any{"subtotal"}, env.Error.Details)
}

func TestAsErrorFallsBackToSentinelsAndInternal(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{fmt.Errorf("load: %w", ErrNotFound), CodeNotFound, http.StatusNotFound},
		{fmt.Errorf("insert: %w", ErrDuplicate), CodeDuplicate, http.StatusConflict},
		{ErrForbidden, CodeForbidden, http.StatusForbidden},
		{ErrUnauthorized, CodeUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", NewError(CodeVisitNotFound, "visit not found")), CodeVisitNotFound, http.StatusNotFound},
		{errors.New("pg: connection refused"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got := AsError(tc.err)
		assert.Equal(t, tc.code, got.Code, tc.err.Error())
		assert.Equal(t, tc.status, got.Status, tc.err.Error())
	}
	assert.NotContains(t, AsError(errors.New("secret dsn")).Message, "secret")
}

func TestNewErrorWrapsSentinel(t *testing.T) {
	err := NewError(CodeQuotationNotFound, "quotation not found")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, NewError(CodeForbidden, "nope"), ErrForbidden)
	assert.ErrorIs(t, NewError(CodeDuplicate, "dup"), ErrDuplicate)
	assert.True(t, HasCode(fmt.Errorf("x: %w", err), CodeQuotationNotFound))
	assert.False(t, HasCode(err, CodeVisitNotFound))
	assert.Equal(t, http.StatusTooManyRequests, NewError(CodeRateLimited, "slow down").Status)
}

func TestDecodeJSON(t *testing.T) {
	var target map[string]any
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"subtotal": 236250}`))
	require.NoError(t, DecodeJSON(req, &target))
	assert.Equal(t, json.Number("236250"), target["subtotal"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.True(t, HasCode(DecodeJSON(req, &target), CodeMalformedBody))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	assert.True(t, HasCode(DecodeJSON(req, &target), CodeMalformedBody))
}

type address struct {
	Pincode string `json:"pincode" validate:"required,pincode"`
}

type customerForm struct {
	Mobile  string  `json:"mobile" validate:"required,mobile"`
	Email   string  `json:"email,omitempty" validate:"omitempty,email"`
	Address address `json:"address"`
}

func TestValidateStructReportsJSONPaths(t *testing.T) {
	v := NewValidator()

	require.NoError(t, ValidateStruct(v, customerForm{Mobile: "9876543210", Address: address{Pincode: "560001"}}))

	err := ValidateStruct(v, customerForm{Mobile: "98765", Email: "bad", Address: address{Pincode: "56"}})
	require.Error(t, err)
	appErr := AsError(err)
	assert.Equal(t, CodeValidation, appErr.Code)
	fields, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a 10-digit mobile number", fields["mobile"])
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be a 6-digit pincode", fields["address.pincode"])
}

func TestDecodeJSONLimitRejectsOversizedBody(t *testing.T) {
	var target map[string]any
	body := `{"images":["` + strings.Repeat("A", 2048) + `"]}`

	err := DecodeJSONLimit(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &target, 1024)
	require.Error(t, err)
	appErr := AsError(err)
	assert.Equal(t, CodeMalformedBody, appErr.Code)
	assert.Equal(t, http.StatusRequestEntityTooLarge, appErr.Status)

	require.NoError(t, DecodeJSONLimit(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), &target, 4096))
	assert.Len(t, target["images"], 1)
}
