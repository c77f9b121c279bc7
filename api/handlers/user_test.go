package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/metrofound/lostfound-api/api/handlers"
	"github.com/metrofound/lostfound-api/databases"
	"github.com/metrofound/lostfound-api/databases/mocks"
)

type MockDatabaseHelper struct {
	mock.Mock
}

// Client provides a mock function.
func (_m *MockDatabaseHelper) Client() databases.ClientHelper {
	ret := _m.Called()

	var r0 databases.ClientHelper
	if rf, ok := ret.Get(0).(func() databases.ClientHelper); ok {
		r0 = rf()
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(databases.ClientHelper)
		}
	}

	return r0
}

// Collection provides a mock function.
func (_m *MockDatabaseHelper) Collection(name string) databases.CollectionHelper {
	ret := _m.Called(name)

	var r0 databases.CollectionHelper
	if rf, ok := ret.Get(0).(func(string) databases.CollectionHelper); ok {
		r0 = rf(name)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(databases.CollectionHelper)
		}
	}

	return r0
}

func TestUser_UserHandlerBadID(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/user/asdf", nil)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	db = &MockDatabaseHelper{} // can be used as db = &mocks.DatabaseHelper{}

	userDatabase := databases.NewUserDatabase(db)
	u := handlers.User{
		DB: userDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.UserHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expected := `{"response": "failed to get objectID from Hex, the provided hex string is not a valid ObjectID"}`
	if rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestUser_UserCreateHandlerMissingCredentials(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"email": "rider@example.com"})
	req, err := http.NewRequest("POST", "/api/v1/create-user", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	var db databases.DatabaseHelper
	db = &MockDatabaseHelper{}

	userDatabase := databases.NewUserDatabase(db)
	u := handlers.User{
		DB: userDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.UserCreateHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}
}

func TestUser_UserCreateHandlerDuplicateEmail(t *testing.T) {
	body, _ := json.Marshal(map[string]string{
		"email":    "Rider@Example.com",
		"password": "hunter22",
	})
	req, err := http.NewRequest("POST", "/api/v1/create-user", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var singleResultHelper databases.SingleResultHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	singleResultHelper = &mocks.SingleResultHelper{}

	// an existing user decodes cleanly, so the create must conflict
	singleResultHelper.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(nil)
	conn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.(*MockDatabaseHelper).On("Collection", "users").Return(conn)

	userDatabase := databases.NewUserDatabase(db)
	u := handlers.User{
		DB: userDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.UserCreateHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusConflict {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusConflict)
	}
}

func TestUser_UserCheckEmailHandlerAvailable(t *testing.T) {
	body, _ := json.Marshal(map[string]string{"email": "new@example.com"})
	req, err := http.NewRequest("POST", "/api/v1/check-user", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var singleResultHelper databases.SingleResultHelper

	db = &MockDatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	singleResultHelper = &mocks.SingleResultHelper{}

	singleResultHelper.(*mocks.SingleResultHelper).On("Decode", mock.Anything).Return(errors.New("mongo: no documents in result"))
	conn.(*mocks.CollectionHelper).On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.(*MockDatabaseHelper).On("Collection", "users").Return(conn)

	userDatabase := databases.NewUserDatabase(db)
	u := handlers.User{
		DB: userDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.UserCheckEmailHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}
}
