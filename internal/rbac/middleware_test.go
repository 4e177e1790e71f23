package rbac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/shared"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, principal *shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if principal != nil {
		req = req.WithContext(shared.ContextWithPrincipal(context.Background(), *principal))
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Error   httpx.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.False(t, env.Success)
	return env.Error.Code
}

func TestRequireAnyByRole(t *testing.T) {
	m := Middleware{Service: NewService(nil)}

	dealer := &shared.Principal{AccountID: "d-1", Role: shared.RoleDealer}
	visitor := &shared.Principal{AccountID: "v-1", Role: shared.RoleVisitor}
	manager := &shared.Principal{AccountID: "m-1", Role: shared.RoleAccountManager}

	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAny(PermQuotationCreate), dealer).Code)
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAny(PermVisitPerform), visitor).Code)
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAny(PermQuotationExport), manager).Code)

	rr := serve(t, m.RequireAny(PermQuotationCreate), visitor)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, httpx.CodeForbidden, errorCode(t, rr))

	rr = serve(t, m.RequireAny(PermQuotationManage), manager)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	m := Middleware{Service: NewService(nil)}
	dealer := &shared.Principal{AccountID: "d-1", Role: shared.RoleDealer}
	admin := &shared.Principal{AccountID: "a-1", Role: shared.RoleAdmin}

	assert.Equal(t, http.StatusForbidden, serve(t, m.RequireAll(PermQuotationView, PermQuotationManage), dealer).Code)
	assert.Equal(t, http.StatusNoContent, serve(t, m.RequireAll(PermQuotationView, PermQuotationManage), admin).Code)
}

func TestGuardRequiresPrincipal(t *testing.T) {
	m := Middleware{Service: NewService(nil)}
	rr := serve(t, m.RequireRoles(shared.RoleAdmin), nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, httpx.CodeUnauthenticated, errorCode(t, rr))
}

func TestAdminCannotPerformVisits(t *testing.T) {
	svc := NewService(nil)
	assert.False(t, svc.Allowed(shared.RoleAdmin, PermVisitPerform))
	assert.True(t, svc.Allowed(shared.RoleVisitor, " Visit.Perform "))
	assert.Contains(t, svc.EffectivePermissions(shared.RoleAccountManager), PermPaymentView)
	assert.Empty(t, svc.EffectivePermissions(shared.Role("ghost")))
}

func TestPermissionsHandlerMe(t *testing.T) {
	h := NewPermissionsHandler(NewService(nil))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{AccountID: "v-1", Username: "ravi", Role: shared.RoleVisitor}))
	rr := httptest.NewRecorder()
	h.me(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var env struct {
		Data struct {
			AccountID   string   `json:"accountId"`
			Role        string   `json:"role"`
			Permissions []string `json:"permissions"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, "v-1", env.Data.AccountID)
	assert.Equal(t, "visitor", env.Data.Role)
	assert.Equal(t, []string{PermVisitPerform}, env.Data.Permissions)
}
