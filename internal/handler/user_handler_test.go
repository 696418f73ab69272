package handler

import (
	"net/http"
	"testing"

	"billing/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_SetsCookie(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "access_token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotEmpty(t, cookies[0].Value)

	w = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"password": "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetMe(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, http.MethodGet, "/api/auth/me", model.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var me struct {
		Username    string   `json:"username"`
		Permissions []string `json:"permissions"`
	}
	decode(t, w, &me)
	assert.Equal(t, "admin", me.Username)
	assert.Contains(t, me.Permissions, "invoices.approve")
}

func TestUsers_AdminOnly(t *testing.T) {
	api := newAPI(t)

	body := map[string]string{"username": "clerk", "email": "clerk@example.com", "password": "secret123", "role": model.RoleAccountant}
	w := api.do(t, http.MethodPost, "/api/users", model.RoleAccountant, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, http.MethodPost, "/api/users", model.RoleAdmin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(t, http.MethodPost, "/api/users", model.RoleAdmin, body)
	assert.Equal(t, http.StatusConflict, w.Code)
}
