package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"HRPortal/internal/auth"
)

type handlerFixture struct {
	*serviceFixture
	handler *Handler
	echo    *echo.Echo
}

func newHandlerFixture(t *testing.T, userCount int) *handlerFixture {
	t.Helper()
	f := newFixture(t, userCount)
	return &handlerFixture{
		serviceFixture: f,
		handler:        NewHandler(f.service, zap.NewNop()),
		echo:           echo.New(),
	}
}

// request builds an echo context carrying the user's claims, the way the JWT
// middleware would.
func (f *handlerFixture) request(t *testing.T, method, target string, body interface{}, as *auth.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := f.echo.NewContext(req, rec)
	if as != nil {
		c.Set("user", &auth.JWTClaims{UserID: as.ID.Hex(), Email: as.Email, Role: as.Role})
	}
	return c, rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandlerCreate(t *testing.T) {
	f := newHandlerFixture(t, 1)

	c, rec := f.request(t, http.MethodPost, "/api/notifications", validRequest(), &f.admin)
	require.NoError(t, f.handler.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	notif := data["notification"].(map[string]interface{})
	assert.Equal(t, "Office closed Friday", notif["title"])
}

func TestHandlerCreate_ValidationError(t *testing.T) {
	f := newHandlerFixture(t, 1)

	req := validRequest()
	req.Title = "Hi"
	c, rec := f.request(t, http.MethodPost, "/api/notifications", req, &f.admin)
	require.NoError(t, f.handler.Create(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["message"])
}

func TestHandlerCreate_NoRecipients(t *testing.T) {
	f := newHandlerFixture(t, 1)

	req := validRequest()
	req.Recipients = RecipientsSpecific
	req.UserIDs = []string{primitive.NewObjectID().Hex()}
	c, rec := f.request(t, http.MethodPost, "/api/notifications", req, &f.admin)
	require.NoError(t, f.handler.Create(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_MissingClaims(t *testing.T) {
	f := newHandlerFixture(t, 1)

	endpoints := map[string]func(echo.Context) error{
		"create":       f.handler.Create,
		"list":         f.handler.List,
		"list-user":    f.handler.ListUser,
		"stats":        f.handler.Stats,
		"types":        f.handler.Types,
		"unread-count": f.handler.UnreadCount,
	}
	for name, endpoint := range endpoints {
		t.Run(name, func(t *testing.T) {
			c, rec := f.request(t, http.MethodGet, "/api/notifications", nil, nil)
			require.NoError(t, endpoint(c))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, false, decodeBody(t, rec)["success"])
		})
	}
}

func TestHandlerMarkRead(t *testing.T) {
	f := newHandlerFixture(t, 1)
	n, err := f.service.Create(context.Background(), validRequest(), f.admin.ID)
	require.NoError(t, err)

	c, rec := f.request(t, http.MethodPut, "/", nil, &f.users[0])
	c.SetParamNames("id")
	c.SetParamValues(n.ID.Hex())
	require.NoError(t, f.handler.MarkRead(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "notification marked as read", decodeBody(t, rec)["message"])

	r := f.store.readFor(n.ID, f.users[0].ID)
	require.NotNil(t, r)
	assert.NotNil(t, r.ReadAt)
}

func TestHandlerMarkRead_BadID(t *testing.T) {
	f := newHandlerFixture(t, 1)

	c, rec := f.request(t, http.MethodPut, "/", nil, &f.users[0])
	c.SetParamNames("id")
	c.SetParamValues("not-hex")
	require.NoError(t, f.handler.MarkRead(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerMarkRead_Unknown(t *testing.T) {
	f := newHandlerFixture(t, 1)

	c, rec := f.request(t, http.MethodPut, "/", nil, &f.users[0])
	c.SetParamNames("id")
	c.SetParamValues(primitive.NewObjectID().Hex())
	require.NoError(t, f.handler.MarkRead(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerMarkMultipleRead(t *testing.T) {
	f := newHandlerFixture(t, 1)
	first, err := f.service.Create(context.Background(), validRequest(), f.admin.ID)
	require.NoError(t, err)
	second, err := f.service.Create(context.Background(), validRequest(), f.admin.ID)
	require.NoError(t, err)

	body := map[string]interface{}{
		"notification_ids": []string{first.ID.Hex(), second.ID.Hex(), "junk"},
	}
	c, rec := f.request(t, http.MethodPut, "/api/notifications/mark-multiple-read", body, &f.users[0])
	require.NoError(t, f.handler.MarkMultipleRead(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["processed"])
}

func TestHandlerMarkMultipleRead_EmptyBody(t *testing.T) {
	f := newHandlerFixture(t, 1)

	body := map[string]interface{}{"notification_ids": []string{}}
	c, rec := f.request(t, http.MethodPut, "/api/notifications/mark-multiple-read", body, &f.users[0])
	require.NoError(t, f.handler.MarkMultipleRead(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDelete(t *testing.T) {
	f := newHandlerFixture(t, 1)
	n, err := f.service.Create(context.Background(), validRequest(), f.admin.ID)
	require.NoError(t, err)

	c, rec := f.request(t, http.MethodDelete, "/", nil, &f.admin)
	c.SetParamNames("id")
	c.SetParamValues(n.ID.Hex())
	require.NoError(t, f.handler.Delete(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHandlerUnreadCount(t *testing.T) {
	f := newHandlerFixture(t, 1)
	_, err := f.service.Create(context.Background(), validRequest(), f.admin.ID)
	require.NoError(t, err)

	c, rec := f.request(t, http.MethodGet, "/api/notifications/unread-count", nil, &f.users[0])
	require.NoError(t, f.handler.UnreadCount(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["unread_count"])
}

func TestHandlerTypes(t *testing.T) {
	f := newHandlerFixture(t, 0)

	c, rec := f.request(t, http.MethodGet, "/api/notifications/types", nil, &f.admin)
	require.NoError(t, f.handler.Types(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Len(t, data["types"], 3)
}

func TestHandlerStats_RoleBranch(t *testing.T) {
	f := newHandlerFixture(t, 1)
	_, err := f.service.Create(context.Background(), validRequest(), f.admin.ID)
	require.NoError(t, err)

	c, rec := f.request(t, http.MethodGet, "/api/notifications/stats?period=month", nil, &f.admin)
	require.NoError(t, f.handler.Stats(c))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "month", data["period"])
	stats := data["stats"].(map[string]interface{})
	assert.Contains(t, stats, "notifications_by_type", "admins get the system-wide shape")

	c, rec = f.request(t, http.MethodGet, "/api/notifications/stats", nil, &f.users[0])
	require.NoError(t, f.handler.Stats(c))
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "week", data["period"], "the period defaults to week")
	stats = data["stats"].(map[string]interface{})
	assert.Contains(t, stats, "unread_notifications", "employees get their own shape")
}

func TestHandlerStats_BadDates(t *testing.T) {
	f := newHandlerFixture(t, 1)

	c, rec := f.request(t, http.MethodGet,
		"/api/notifications/stats?start_date=2026-13-01&end_date=2026-01-31", nil, &f.admin)
	require.NoError(t, f.handler.Stats(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerList_Defaults(t *testing.T) {
	f := newHandlerFixture(t, 1)
	for i := 0; i < 3; i++ {
		_, err := f.service.Create(context.Background(), validRequest(), f.admin.ID)
		require.NoError(t, err)
	}

	c, rec := f.request(t, http.MethodGet, "/api/notifications?page=0&limit=9999", nil, &f.admin)
	require.NoError(t, f.handler.List(c))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	pagination := data["pagination"].(map[string]interface{})
	assert.Equal(t, float64(1), pagination["page"], "out-of-range pages fall back to 1")
	assert.Equal(t, float64(10), pagination["limit"], "limits above 100 fall back to 10")
	assert.Equal(t, float64(3), pagination["total"])
}

func TestHandlerListUser_EmptyIsArray(t *testing.T) {
	f := newHandlerFixture(t, 1)

	c, rec := f.request(t, http.MethodGet, "/api/notifications/user", nil, &f.users[0])
	require.NoError(t, f.handler.ListUser(c))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].(map[string]interface{})
	items, ok := data["notifications"].([]interface{})
	require.True(t, ok, "an empty page must encode as [] not null")
	assert.Empty(t, items)
}
