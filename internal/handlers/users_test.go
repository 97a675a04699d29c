package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewhitmore/riskledger/internal/handlers"
	"github.com/ewhitmore/riskledger/internal/models"
	"github.com/ewhitmore/riskledger/internal/services"
)

// withURLParam injects a chi route parameter into the request context.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateUser_Success(t *testing.T) {
	mock := &handlers.MockUserService{
		CreateUserFunc: func(ctx context.Context, email, name, role, password, createdBy string) (*services.UserResponse, error) {
			assert.Equal(t, "admin123", createdBy)
			return &services.UserResponse{ID: "user456", Email: email, Role: role}, nil
		},
	}

	handler := handlers.NewUserHandler(mock)
	req := handlers.NewTestRequest(t, "POST", "/users", handlers.CreateUserRequest{
		Email:    "new@example.com",
		Name:     "New Officer",
		Role:     models.RoleRiskOfficer,
		Password: "InitialPass77!",
	})
	req = handlers.WithAuthContext(req, "admin123", models.RoleAdmin)

	w := httptest.NewRecorder()
	handler.Create(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "user456", resp.ID)
}

func TestCreateUser_UnknownRole(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{})
	req := handlers.NewTestRequest(t, "POST", "/users", handlers.CreateUserRequest{
		Email:    "new@example.com",
		Name:     "New Officer",
		Role:     "superuser",
		Password: "InitialPass77!",
	})
	req = handlers.WithAuthContext(req, "admin123", models.RoleAdmin)

	w := httptest.NewRecorder()
	handler.Create(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestCreateUser_Duplicate(t *testing.T) {
	mock := &handlers.MockUserService{
		CreateUserFunc: func(ctx context.Context, email, name, role, password, createdBy string) (*services.UserResponse, error) {
			return nil, models.ErrConflict
		},
	}

	handler := handlers.NewUserHandler(mock)
	req := handlers.NewTestRequest(t, "POST", "/users", handlers.CreateUserRequest{
		Email:    "existing@example.com",
		Name:     "Someone",
		Role:     models.RoleAuditor,
		Password: "InitialPass77!",
	})
	req = handlers.WithAuthContext(req, "admin123", models.RoleAdmin)

	w := httptest.NewRecorder()
	handler.Create(w, req)

	handlers.AssertErrorResponse(t, w, 409, "conflict")
}

func TestUpdateUser_PartialPatch(t *testing.T) {
	mock := &handlers.MockUserService{
		UpdateUserFunc: func(ctx context.Context, id string, patch *models.UserPatch, updatedBy string) (*services.UserResponse, error) {
			assert.Equal(t, "user456", id)
			require.NotNil(t, patch.Active)
			assert.False(t, *patch.Active)
			assert.Nil(t, patch.Name)
			assert.Nil(t, patch.Role)
			return &services.UserResponse{ID: id, Active: false}, nil
		},
	}

	active := false
	handler := handlers.NewUserHandler(mock)
	req := handlers.NewTestRequest(t, "PATCH", "/users/user456", handlers.UpdateUserRequest{Active: &active})
	req = handlers.WithAuthContext(req, "admin123", models.RoleAdmin)
	req = withURLParam(req, "id", "user456")

	w := httptest.NewRecorder()
	handler.Update(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.False(t, resp.Active)
}

func TestDeleteUser_NotFound(t *testing.T) {
	mock := &handlers.MockUserService{
		DeleteUserFunc: func(ctx context.Context, id, requestedBy string) error {
			return models.ErrNotFound
		},
	}

	handler := handlers.NewUserHandler(mock)
	req := httptest.NewRequest("DELETE", "/users/ghost", nil)
	req = handlers.WithAuthContext(req, "admin123", models.RoleAdmin)
	req = withURLParam(req, "id", "ghost")

	w := httptest.NewRecorder()
	handler.Delete(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestUnlockUser(t *testing.T) {
	unlocked := ""
	mock := &handlers.MockUserService{
		UnlockFunc: func(ctx context.Context, id, requestedBy string) error {
			unlocked = id
			return nil
		},
	}

	handler := handlers.NewUserHandler(mock)
	req := httptest.NewRequest("POST", "/users/user456/unlock", nil)
	req = handlers.WithAuthContext(req, "admin123", models.RoleAdmin)
	req = withURLParam(req, "id", "user456")

	w := httptest.NewRecorder()
	handler.Unlock(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "user456", unlocked)
}

func TestUpdateProfile_Success(t *testing.T) {
	mock := &handlers.MockUserService{
		UpdateProfileFunc: func(ctx context.Context, userID string, name, avatarURL *string) (*services.UserResponse, error) {
			assert.Equal(t, "user123", userID)
			require.NotNil(t, avatarURL)
			return &services.UserResponse{ID: userID, AvatarURL: avatarURL}, nil
		},
	}

	avatar := "https://cdn.example.com/me.png"
	handler := handlers.NewUserHandler(mock)
	req := handlers.NewTestRequest(t, "PATCH", "/profile", handlers.UpdateProfileRequest{AvatarURL: &avatar})
	req = handlers.WithAuthContext(req, "user123", models.RoleAuditor)

	w := httptest.NewRecorder()
	handler.UpdateProfile(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	require.NotNil(t, resp.AvatarURL)
	assert.Equal(t, avatar, *resp.AvatarURL)
}

func TestUpdateProfile_InvalidAvatarURL(t *testing.T) {
	avatar := "not a url"
	handler := handlers.NewUserHandler(&handlers.MockUserService{})
	req := handlers.NewTestRequest(t, "PATCH", "/profile", handlers.UpdateProfileRequest{AvatarURL: &avatar})
	req = handlers.WithAuthContext(req, "user123", models.RoleAuditor)

	w := httptest.NewRecorder()
	handler.UpdateProfile(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestListUsers_PassesPagination(t *testing.T) {
	var gotLimit, gotOffset int
	mock := &handlers.MockUserService{
		ListUsersFunc: func(ctx context.Context, limit, offset int) ([]*services.UserResponse, error) {
			gotLimit, gotOffset = limit, offset
			return []*services.UserResponse{}, nil
		},
	}

	handler := handlers.NewUserHandler(mock)
	req := httptest.NewRequest("GET", "/users?limit=10&offset=20", nil)
	req = handlers.WithAuthContext(req, "admin123", models.RoleAdmin)

	w := httptest.NewRecorder()
	handler.List(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 20, gotOffset)
}
