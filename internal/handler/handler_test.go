package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-booking/internal/handler"
	"github.com/iliyamo/hostel-booking/internal/model"
	"github.com/iliyamo/hostel-booking/internal/repository"
	"github.com/iliyamo/hostel-booking/internal/router"
	"github.com/iliyamo/hostel-booking/internal/settlement"
	"github.com/iliyamo/hostel-booking/internal/settlement/settlementtest"
	"github.com/iliyamo/hostel-booking/internal/utils"
)

const secret = "handler-secret"

type app struct {
	e     *echo.Echo
	store *settlementtest.MemStore
	mock  sqlmock.Sqlmock
}

func newApp(t *testing.T) *app {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	xdb := sqlx.NewDb(db, "mysql")

	store := settlementtest.NewMemStore()
	svc := settlement.NewService(store, &settlementtest.Recorder{}, nil)

	rooms := repository.NewRoomRepo(xdb)
	bookings := repository.NewBookingRepo(xdb)
	payments := repository.NewPaymentRepo(xdb)
	users := repository.NewUserRepo(xdb)

	e := echo.New()
	router.RegisterStudent(e, handler.NewStudentHandler(svc, rooms, bookings, payments, users, nil), secret, nil)
	router.RegisterAdmin(e, handler.NewAdminHandler(svc, repository.NewHostelRepo(xdb), rooms, bookings, payments,
		users, 4, nil), secret)
	return &app{e: e, store: store, mock: mock}
}

func token(t *testing.T, uid uint64, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, uid, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func (a *app) do(method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestStudentRoutesRequireStudentRole(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, "/v1/bookings", "", `{"room_id":1}`).Code)
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, "/v1/bookings", token(t, 1, model.RoleAdmin), `{"room_id":1}`).Code)
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodGet, "/v1/admin/bookings", token(t, 1, model.RoleStudent), "").Code)
}

func TestCreateBooking(t *testing.T) {
	a := newApp(t)
	roomID := a.store.AddRoom(model.Room{RoomNumber: "B2", RoomType: model.RoomSingle, Capacity: 1, PriceCents: 4000})
	a.store.AddStudent(5, 4500)
	a.store.AddStudent(6, 9000)

	rec := a.do(http.MethodPost, "/v1/bookings", token(t, 5, model.RoleStudent), `{"room_id":`+itoa(roomID)+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["settled"])
	assert.EqualValues(t, 500, body["balance_cents"])
	assert.Equal(t, "Confirmed", body["booking"].(map[string]any)["status"])

	// A second booking by the same student conflicts, as does a full room.
	rec = a.do(http.MethodPost, "/v1/bookings", token(t, 5, model.RoleStudent), `{"room_id":`+itoa(roomID)+`}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(http.MethodPost, "/v1/bookings", token(t, 6, model.RoleStudent), `{"room_id":`+itoa(roomID)+`}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "not available")

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/bookings", token(t, 6, model.RoleStudent), `{}`).Code)
	assert.Equal(t, http.StatusNotFound,
		a.do(http.MethodPost, "/v1/bookings", token(t, 6, model.RoleStudent), `{"room_id":999}`).Code)
}

func TestPendingBookingPayAndCancel(t *testing.T) {
	a := newApp(t)
	roomID := a.store.AddRoom(model.Room{RoomNumber: "C1", RoomType: model.RoomDouble, Capacity: 2, PriceCents: 6000})
	a.store.AddStudent(8, 1000)
	a.store.AddStudent(9, 0)
	student := token(t, 8, model.RoleStudent)

	rec := a.do(http.MethodPost, "/v1/bookings", student, `{"room_id":`+itoa(roomID)+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, false, body["settled"])
	id := itoa(uint64(body["booking"].(map[string]any)["id"].(float64)))

	rec = a.do(http.MethodPost, "/v1/bookings/"+id+"/pay", student, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient")

	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, "/v1/bookings/"+id+"/cancel", token(t, 9, model.RoleStudent), "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/v1/bookings/abc/cancel", student, "").Code)

	rec = a.do(http.MethodPost, "/v1/bookings/"+id+"/cancel", student, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Cancelled", decode(t, rec)["booking"].(map[string]any)["status"])
	assert.Equal(t, 0, a.store.Holds(roomID))

	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/v1/bookings/"+id+"/cancel", student, "").Code)
}

func TestTopUp(t *testing.T) {
	a := newApp(t)
	a.store.AddStudent(3, 0)
	student := token(t, 3, model.RoleStudent)

	rec := a.do(http.MethodPost, "/v1/payments/top-up", student, `{"amount_cents":2500,"method":"Mpesa","transaction_ref":"QK12"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2500, decode(t, rec)["balance_cents"])

	rec = a.do(http.MethodPost, "/v1/payments/top-up", student, `{"amount_cents":1000,"method":"Bank"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2500, decode(t, rec)["balance_cents"])

	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPost, "/v1/payments/top-up", student, `{"amount_cents":0,"method":"Mpesa"}`).Code)
	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPost, "/v1/payments/top-up", student, `{"amount_cents":100,"method":"Card"}`).Code)
}

func TestBalanceReadsProfile(t *testing.T) {
	a := newApp(t)
	a.mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, student_number, emergency_contact, balance_cents, updated_at FROM user_profiles WHERE user_id=?")).
		WithArgs(uint64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "student_number", "emergency_contact", "balance_cents", "updated_at"}).
			AddRow(4, "S-004", "", 1234, time.Now()))

	rec := a.do(http.MethodGet, "/v1/balance", token(t, 4, model.RoleStudent), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1234, decode(t, rec)["balance_cents"])
	assert.NoError(t, a.mock.ExpectationsWereMet())
}

func TestDatabaseErrorsAreHidden(t *testing.T) {
	a := newApp(t)
	a.mock.ExpectQuery("FROM user_profiles").WillReturnError(assert.AnError)

	rec := a.do(http.MethodGet, "/v1/balance", token(t, 4, model.RoleStudent), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "database error", decode(t, rec)["error"])
}

func TestAdminAssignRoom(t *testing.T) {
	a := newApp(t)
	roomID := a.store.AddRoom(model.Room{RoomNumber: "D4", RoomType: model.RoomShared, Capacity: 3, PriceCents: 3000})
	a.store.AddStudent(11, 3000)
	a.store.AddStudent(12, 100)
	admin := token(t, 1, model.RoleAdmin)

	rec := a.do(http.MethodPost, "/v1/admin/bookings/assign", admin,
		`{"student_id":11,"room_id":`+itoa(roomID)+`,"start_date":"2025-02-01","vacate_date":"2025-06-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["settled"])
	assert.EqualValues(t, 0, body["balance_cents"])

	rec = a.do(http.MethodPost, "/v1/admin/bookings/assign", admin,
		`{"student_id":12,"room_id":`+itoa(roomID)+`,"start_date":"2025-02-01","vacate_date":"2025-06-01"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/v1/admin/bookings/assign", admin,
		`{"student_id":12,"room_id":`+itoa(roomID)+`,"start_date":"01/02/2025","vacate_date":"2025-06-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/admin/bookings/assign", admin,
		`{"student_id":12,"room_id":`+itoa(roomID)+`,"start_date":"2025-06-01","vacate_date":"2025-06-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminSetStatuses(t *testing.T) {
	a := newApp(t)
	roomID := a.store.AddRoom(model.Room{RoomNumber: "E5", RoomType: model.RoomSingle, Capacity: 1, PriceCents: 2000})
	a.store.AddStudent(21, 500)
	admin := token(t, 1, model.RoleAdmin)

	rec := a.do(http.MethodPost, "/v1/bookings", token(t, 21, model.RoleStudent), `{"room_id":`+itoa(roomID)+`}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := itoa(uint64(decode(t, rec)["booking"].(map[string]any)["id"].(float64)))

	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPut, "/v1/admin/bookings/"+id+"/status", admin, `{"status":"Lost"}`).Code)
	assert.Equal(t, http.StatusConflict,
		a.do(http.MethodPut, "/v1/admin/bookings/"+id+"/status", admin, `{"status":"Completed"}`).Code)

	// A bank top-up waits for approval, then credits the balance.
	rec = a.do(http.MethodPost, "/v1/payments/top-up", token(t, 21, model.RoleStudent), `{"amount_cents":1500,"method":"Bank"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	pid := itoa(uint64(decode(t, rec)["payment"].(map[string]any)["id"].(float64)))

	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPut, "/v1/admin/payments/"+pid+"/status", admin, `{"status":"Refunded"}`).Code)
	rec = a.do(http.MethodPut, "/v1/admin/payments/"+pid+"/status", admin, `{"status":"Success"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bal, _ := a.store.Balance(21)
	assert.Equal(t, int64(2000), bal)

	rec = a.do(http.MethodPut, "/v1/admin/bookings/"+id+"/status", admin, `{"status":"Confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["settled"])
	bal, _ = a.store.Balance(21)
	assert.Equal(t, int64(0), bal)
}

func TestAdminDeleteHostelWithRooms(t *testing.T) {
	a := newApp(t)
	a.mock.ExpectBegin()
	a.mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM hostels WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	a.mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM rooms WHERE hostel_id = ?")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	a.mock.ExpectRollback()

	rec := a.do(http.MethodDelete, "/v1/admin/hostels/2", token(t, 1, model.RoleAdmin), "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, a.mock.ExpectationsWereMet())
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }
