package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/devarsh10/userbase/internal/models"
	"github.com/devarsh10/userbase/internal/repositories"
	"github.com/devarsh10/userbase/internal/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// memUserStore is an in-memory UserStore for handler tests, mirroring the
// gorm store's contract including the conditional image-path update.
type memUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[uuid.UUID]models.User)}
}

func (s *memUserStore) FindAll(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		u.Password = "" // projection excludes the hash
		out = append(out, u)
	}
	return out, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			found := u
			return &found, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (s *memUserStore) Create(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repositories.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	s.users[user.ID] = *user
	return nil
}

func (s *memUserStore) Save(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = *user
	return nil
}

func (s *memUserStore) SetImagePath(ctx context.Context, id uuid.UUID, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.ImagePath != nil {
		return repositories.ErrImageAlreadySet
	}
	u.ImagePath = &path
	s.users[id] = u
	return nil
}

func (s *memUserStore) Delete(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(s.users, user.ID)
	return nil
}

// racingUserStore simulates losing the imagePath race: the lookup still
// reports no image, but the conditional update finds the guard column
// already set by a concurrent request.
type racingUserStore struct {
	*memUserStore
}

func (s *racingUserStore) SetImagePath(ctx context.Context, id uuid.UUID, path string) error {
	return repositories.ErrImageAlreadySet
}

func (s *memUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func setup(t *testing.T) *memUserStore {
	t.Helper()
	store := newMemUserStore()
	repositories.Users = store

	images, err := repositories.NewImageStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageStore: %v", err)
	}
	Images = images
	return store
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodePayload(t *testing.T, rr *httptest.ResponseRecorder) utils.Payload {
	t.Helper()
	var payload utils.Payload
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func createTestUser(t *testing.T, email string) {
	t.Helper()
	rr := httptest.NewRecorder()
	CreateUser(rr, jsonRequest(t, http.MethodPost, "/create", map[string]string{
		"email":    email,
		"fullName": "A B",
		"password": "Password1!",
	}))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create fixture user: got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateUser(t *testing.T) {
	t.Run("registers a new user", func(t *testing.T) {
		store := setup(t)

		rr := httptest.NewRecorder()
		CreateUser(rr, jsonRequest(t, http.MethodPost, "/create", map[string]string{
			"email":    "a@b.com",
			"fullName": "A B",
			"password": "Password1!",
		}))

		if rr.Code != http.StatusCreated {
			t.Fatalf("got %d, want 201: %s", rr.Code, rr.Body.String())
		}
		if store.count() != 1 {
			t.Fatalf("got %d users, want 1", store.count())
		}

		user, err := store.FindByEmail(context.Background(), "a@b.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if user.Password == "Password1!" {
			t.Error("password stored as plaintext")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("Password1!")); err != nil {
			t.Errorf("stored hash does not verify: %v", err)
		}
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		store := setup(t)
		createTestUser(t, "a@b.com")

		rr := httptest.NewRecorder()
		CreateUser(rr, jsonRequest(t, http.MethodPost, "/create", map[string]string{
			"email":    "a@b.com",
			"fullName": "A B",
			"password": "Password1!",
		}))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400", rr.Code)
		}
		if payload := decodePayload(t, rr); payload.Message != "Email already registered" {
			t.Errorf("got message %q", payload.Message)
		}
		if store.count() != 1 {
			t.Errorf("duplicate create added a document; got %d users", store.count())
		}
	})

	t.Run("normalizes email case before uniqueness check", func(t *testing.T) {
		store := setup(t)
		createTestUser(t, "a@b.com")

		rr := httptest.NewRecorder()
		CreateUser(rr, jsonRequest(t, http.MethodPost, "/create", map[string]string{
			"email":    "A@B.COM",
			"fullName": "A B",
			"password": "Password1!",
		}))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400", rr.Code)
		}
		if store.count() != 1 {
			t.Errorf("case variant created a second document")
		}
	})

	t.Run("rejects weak password before touching storage", func(t *testing.T) {
		store := setup(t)

		rr := httptest.NewRecorder()
		CreateUser(rr, jsonRequest(t, http.MethodPost, "/create", map[string]string{
			"email":    "a@b.com",
			"fullName": "A B",
			"password": "password1", // no symbol, no uppercase
		}))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400", rr.Code)
		}
		if payload := decodePayload(t, rr); payload.Message != "Validation failed" {
			t.Errorf("got message %q", payload.Message)
		}
		if store.count() != 0 {
			t.Error("invalid payload reached storage")
		}
	})

	t.Run("rejects digits in full name", func(t *testing.T) {
		setup(t)

		rr := httptest.NewRecorder()
		CreateUser(rr, jsonRequest(t, http.MethodPost, "/create", map[string]string{
			"email":    "a@b.com",
			"fullName": "A B3",
			"password": "Password1!",
		}))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400", rr.Code)
		}
	})

	t.Run("rejects wrong method", func(t *testing.T) {
		setup(t)

		rr := httptest.NewRecorder()
		CreateUser(rr, httptest.NewRequest(http.MethodGet, "/create", nil))

		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("got %d, want 405", rr.Code)
		}
	})
}

func TestEditUser(t *testing.T) {
	t.Run("returns 404 for unknown email without side effects", func(t *testing.T) {
		store := setup(t)

		rr := httptest.NewRecorder()
		EditUser(rr, jsonRequest(t, http.MethodPut, "/edit", map[string]string{
			"email":    "ghost@b.com",
			"fullName": "New Name",
			"password": "Password1!",
		}))

		if rr.Code != http.StatusNotFound {
			t.Fatalf("got %d, want 404", rr.Code)
		}
		if store.count() != 0 {
			t.Error("edit of a missing user created a document")
		}
	})

	t.Run("overwrites name and rehashes password", func(t *testing.T) {
		store := setup(t)
		createTestUser(t, "a@b.com")
		before, _ := store.FindByEmail(context.Background(), "a@b.com")

		rr := httptest.NewRecorder()
		EditUser(rr, jsonRequest(t, http.MethodPut, "/edit", map[string]string{
			"email":    "a@b.com",
			"fullName": "New Name",
			"password": "Changed2!",
		}))

		if rr.Code != http.StatusOK {
			t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
		}

		after, err := store.FindByEmail(context.Background(), "a@b.com")
		if err != nil {
			t.Fatalf("FindByEmail: %v", err)
		}
		if after.FullName != "New Name" {
			t.Errorf("fullName: got %q", after.FullName)
		}
		if after.Password == before.Password {
			t.Error("password hash unchanged after edit")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(after.Password), []byte("Changed2!")); err != nil {
			t.Errorf("new hash does not verify: %v", err)
		}
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("returns 404 for unknown email", func(t *testing.T) {
		setup(t)

		rr := httptest.NewRecorder()
		DeleteUser(rr, jsonRequest(t, http.MethodDelete, "/delete", map[string]string{
			"email": "ghost@b.com",
		}))

		if rr.Code != http.StatusNotFound {
			t.Fatalf("got %d, want 404", rr.Code)
		}
	})

	t.Run("removes the user from subsequent listings", func(t *testing.T) {
		setup(t)
		createTestUser(t, "a@b.com")
		createTestUser(t, "c@d.com")

		rr := httptest.NewRecorder()
		DeleteUser(rr, jsonRequest(t, http.MethodDelete, "/delete", map[string]string{
			"email": "a@b.com",
		}))
		if rr.Code != http.StatusOK {
			t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
		}

		list := httptest.NewRecorder()
		GetAllUsers(list, httptest.NewRequest(http.MethodGet, "/getAll", nil))
		if list.Code != http.StatusOK {
			t.Fatalf("getAll: got %d, want 200", list.Code)
		}
		body := list.Body.String()
		if strings.Contains(body, "a@b.com") {
			t.Error("deleted user still listed")
		}
		if !strings.Contains(body, "c@d.com") {
			t.Error("remaining user missing from listing")
		}
	})
}

func TestGetAllUsers(t *testing.T) {
	store := setup(t)
	createTestUser(t, "a@b.com")

	rr := httptest.NewRecorder()
	GetAllUsers(rr, httptest.NewRequest(http.MethodGet, "/getAll", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Data struct {
			Users []map[string]string `json:"users"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Users) != 1 {
		t.Fatalf("got %d users, want 1", len(resp.Data.Users))
	}
	if resp.Data.Users[0]["email"] != "a@b.com" || resp.Data.Users[0]["fullName"] != "A B" {
		t.Errorf("unexpected projection: %v", resp.Data.Users[0])
	}

	user, _ := store.FindByEmail(context.Background(), "a@b.com")
	if user != nil && user.Password != "" && strings.Contains(rr.Body.String(), user.Password) {
		t.Error("password hash leaked into the listing")
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("listing response carries a password field")
	}
}

func multipartRequest(t *testing.T, email, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("email", email); err != nil {
		t.Fatalf("write email field: %v", err)
	}
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/uploadImage", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadImage(t *testing.T) {
	pngBytes := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

	t.Run("stores image and sets the path once", func(t *testing.T) {
		store := setup(t)
		createTestUser(t, "a@b.com")

		rr := httptest.NewRecorder()
		UploadImage(rr, multipartRequest(t, "a@b.com", "avatar.png", pngBytes))

		if rr.Code != http.StatusCreated {
			t.Fatalf("got %d, want 201: %s", rr.Code, rr.Body.String())
		}

		payload := decodePayload(t, rr)
		data, ok := payload.Data.(map[string]any)
		if !ok {
			t.Fatalf("unexpected data shape: %T", payload.Data)
		}
		path, _ := data["filePath"].(string)
		if path == "" {
			t.Fatal("response lacks filePath")
		}
		firstBytes, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("stored file missing: %v", err)
		}

		user, _ := store.FindByEmail(context.Background(), "a@b.com")
		if user.ImagePath == nil || *user.ImagePath != path {
			t.Errorf("imagePath not persisted: %v", user.ImagePath)
		}

		// Second upload must fail and leave the first file untouched.
		second := httptest.NewRecorder()
		UploadImage(second, multipartRequest(t, "a@b.com", "other.png", pngBytes))
		if second.Code != http.StatusBadRequest {
			t.Fatalf("second upload: got %d, want 400", second.Code)
		}
		if payload := decodePayload(t, second); payload.Message != "User already has an image" {
			t.Errorf("second upload: got message %q", payload.Message)
		}
		afterBytes, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("first file gone after rejected upload: %v", err)
		}
		if !bytes.Equal(firstBytes, afterBytes) {
			t.Error("rejected upload altered the stored file")
		}
	})

	t.Run("cleans up the stored file when a concurrent upload wins", func(t *testing.T) {
		store := setup(t)
		repositories.Users = &racingUserStore{store}
		createTestUser(t, "a@b.com")

		rr := httptest.NewRecorder()
		UploadImage(rr, multipartRequest(t, "a@b.com", "avatar.png", pngBytes))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400: %s", rr.Code, rr.Body.String())
		}
		if payload := decodePayload(t, rr); payload.Message != "User already has an image" {
			t.Errorf("got message %q", payload.Message)
		}

		entries, err := os.ReadDir(Images.Dir)
		if err != nil {
			t.Fatalf("read upload dir: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("lost race left %d orphan file(s) behind", len(entries))
		}
	})

	t.Run("rejects six mebibyte upload regardless of type", func(t *testing.T) {
		setup(t)
		createTestUser(t, "a@b.com")

		big := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 6<<20)...)
		rr := httptest.NewRecorder()
		UploadImage(rr, multipartRequest(t, "a@b.com", "huge.png", big))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("rejects non-image content", func(t *testing.T) {
		setup(t)
		createTestUser(t, "a@b.com")

		rr := httptest.NewRecorder()
		UploadImage(rr, multipartRequest(t, "a@b.com", "fake.png", []byte("plain text pretending to be a png")))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400: %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("returns 404 for unknown user", func(t *testing.T) {
		setup(t)

		rr := httptest.NewRecorder()
		UploadImage(rr, multipartRequest(t, "ghost@b.com", "avatar.png", pngBytes))

		if rr.Code != http.StatusNotFound {
			t.Fatalf("got %d, want 404", rr.Code)
		}
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		setup(t)

		rr := httptest.NewRecorder()
		UploadImage(rr, multipartRequest(t, "not-an-email", "avatar.png", pngBytes))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("got %d, want 400", rr.Code)
		}
	})
}
