package handler_test

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hostel-booking/internal/config"
	"github.com/iliyamo/hostel-booking/internal/handler"
	"github.com/iliyamo/hostel-booking/internal/repository"
	"github.com/iliyamo/hostel-booking/internal/router"
	"github.com/iliyamo/hostel-booking/internal/utils"
)

var userCols = []string{"id", "email", "password_hash", "role", "first_name", "last_name", "gender", "phone",
	"is_active", "created_at", "updated_at"}

func newAuthApp(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
	h := handler.NewAuthHandler(cfg, repository.NewUserRepo(sqlx.NewDb(db, "mysql")), repository.NewTokenRepo(db), nil)
	e := echo.New()
	router.RegisterAuth(e, h, secret)
	return e, mock
}

func post(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRegisterValidation(t *testing.T) {
	e, mock := newAuthApp(t)
	cases := map[string]string{
		"bad email":      `{"email":"nope","password":"longenough","first_name":"A","last_name":"B","gender":"Male","student_number":"S1"}`,
		"short password": `{"email":"a@b.io","password":"short","first_name":"A","last_name":"B","gender":"Male","student_number":"S1"}`,
		"gender":         `{"email":"a@b.io","password":"longenough","first_name":"A","last_name":"B","gender":"X","student_number":"S1"}`,
		"student number": `{"email":"a@b.io","password":"longenough","first_name":"A","last_name":"B","gender":"Female"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, post(e, "/v1/auth/register", body).Code)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterDuplicate(t *testing.T) {
	e, mock := newAuthApp(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnError(dupErr())
	mock.ExpectRollback()

	rec := post(e, "/v1/auth/register",
		`{"email":"Dup@Example.com","password":"longenough","first_name":"A","last_name":"B","gender":"Male","student_number":"S1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin(t *testing.T) {
	e, mock := newAuthApp(t)
	hash, err := utils.HashPassword("correct-horse", 4)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("amina@uni.ac").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(7, "amina@uni.ac", hash, "STUDENT", "Amina", "K", "Female", "", true, now, now))
	mock.ExpectExec("INSERT INTO refresh_tokens").
		WithArgs(uint64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rec := post(e, "/v1/auth/login", `{"email":" Amina@Uni.ac ","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	access := body["access"].(map[string]any)["token"].(string)
	uid, role, err := utils.ParseAccessToken(secret, access)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), uid)
	assert.Equal(t, "STUDENT", role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginRejects(t *testing.T) {
	e, mock := newAuthApp(t)
	hash, err := utils.HashPassword("correct-horse", 4)
	require.NoError(t, err)
	now := time.Now()

	mock.ExpectQuery("FROM users").WillReturnError(sql.ErrNoRows)
	assert.Equal(t, http.StatusUnauthorized, post(e, "/v1/auth/login", `{"email":"x@y.z","password":"whatever1"}`).Code)

	mock.ExpectQuery("FROM users").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(7, "a@b.c", hash, "STUDENT", "A", "B", "Male", "", true, now, now))
	assert.Equal(t, http.StatusUnauthorized, post(e, "/v1/auth/login", `{"email":"a@b.c","password":"wrong-horse"}`).Code)

	mock.ExpectQuery("FROM users").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(7, "a@b.c", hash, "STUDENT", "A", "B", "Male", "", false, now, now))
	assert.Equal(t, http.StatusUnauthorized, post(e, "/v1/auth/login", `{"email":"a@b.c","password":"correct-horse"}`).Code)

	assert.Equal(t, http.StatusBadRequest, post(e, "/v1/auth/login", `{"email":""}`).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRejectsUsedToken(t *testing.T) {
	e, mock := newAuthApp(t)
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").
		WithArgs(sqlmock.AnyArg(), utils.HashRefreshRaw("raw-token"), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, http.StatusUnauthorized, post(e, "/v1/auth/refresh", `{"refresh_token":"raw-token"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(e, "/v1/auth/refresh", `{}`).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshAccessKeepsToken(t *testing.T) {
	e, mock := newAuthApp(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM refresh_tokens WHERE token_hash = ? AND revoked_at IS NULL")).
		WithArgs(utils.HashRefreshRaw("raw-token"), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(12))
	mock.ExpectQuery("FROM users WHERE id=").WithArgs(uint64(12)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(12, "w@uni.ac", "x", "ADMIN", "W", "A", "", "", true, now, now))

	rec := post(e, "/v1/auth/refresh-access", `{"refresh_token":"raw-token"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	access := decode(t, rec)["access"].(map[string]any)["token"].(string)
	_, role, err := utils.ParseAccessToken(secret, access)
	require.NoError(t, err)
	assert.Equal(t, "ADMIN", role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func dupErr() error { return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"} }
