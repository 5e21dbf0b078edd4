package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/devarsh10/userbase/internal/api/services"
	"github.com/devarsh10/userbase/internal/models"
	"github.com/devarsh10/userbase/internal/repositories"
	"github.com/devarsh10/userbase/internal/utils"
	"github.com/devarsh10/userbase/internal/validation"
)

// Images is the profile-image store, initialized at startup.
var Images *repositories.ImageStore

type userInput struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Password string `json:"password"`
}

type deleteInput struct {
	Email string `json:"email"`
}

// POST /user/create
// CreateUser godoc
// @Summary Register a new user
// @Description Validates the payload, hashes the password and persists the user. Emails are unique and case-insensitive.
// @Tags Users
// @Accept json
// @Produce json
// @Param user body handlers.userInput true "New user"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Validation failed or email already registered"
// @Failure 500 {object} utils.Payload
// @Router /user/create [post]
func CreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input userInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	input.Email = validation.NormalizeEmail(input.Email)
	violations := validation.Validate([]validation.FieldRules{
		validation.EmailRules(),
		validation.FullNameRules(),
		validation.PasswordRules(),
	}, map[string]string{
		"email":    input.Email,
		"fullName": input.FullName,
		"password": input.Password,
	})
	if len(violations) > 0 {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Validation failed",
			Data:    map[string]any{"violations": violations},
		})
		return
	}

	// Advisory pre-check only; the unique index is the real guard.
	if _, err := repositories.Users.FindByEmail(r.Context(), input.Email); err == nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Email already registered",
		})
		return
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		log.Printf("create user: existence check failed: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	hashed, err := services.HashPassword(input.Password)
	if err != nil {
		log.Printf("create user: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	newUser := models.User{
		FullName: input.FullName,
		Email:    input.Email,
		Password: hashed.String(),
	}
	if err := repositories.Users.Create(r.Context(), &newUser); err != nil {
		if errors.Is(err, repositories.ErrDuplicateEmail) {
			utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
				Success: false,
				Message: "Email already registered",
			})
			return
		}
		log.Printf("create user: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "User registered successfully",
	})
}

// PUT /user/edit
// EditUser godoc
// @Summary Update a user's name and password
// @Description Looks the user up by email and overwrites fullName and password. The new password is hashed before storage.
// @Tags Users
// @Accept json
// @Produce json
// @Param user body handlers.userInput true "Updated fields"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Validation failed"
// @Failure 404 {object} utils.Payload "User not found"
// @Failure 500 {object} utils.Payload
// @Router /user/edit [put]
func EditUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input userInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	input.Email = validation.NormalizeEmail(input.Email)
	violations := validation.Validate([]validation.FieldRules{
		validation.EmailRules(),
		validation.FullNameRules(),
		validation.PasswordRules(),
	}, map[string]string{
		"email":    input.Email,
		"fullName": input.FullName,
		"password": input.Password,
	})
	if len(violations) > 0 {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Validation failed",
			Data:    map[string]any{"violations": violations},
		})
		return
	}

	user, err := repositories.Users.FindByEmail(r.Context(), input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
				Success: false,
				Message: "User not found",
			})
			return
		}
		log.Printf("edit user: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	hashed, err := services.HashPassword(input.Password)
	if err != nil {
		log.Printf("edit user: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	user.FullName = input.FullName
	user.Password = hashed.String()
	if err := repositories.Users.Save(r.Context(), user); err != nil {
		log.Printf("edit user: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "User updated successfully",
	})
}

// DELETE /user/delete
// DeleteUser godoc
// @Summary Delete a user
// @Description Removes the user permanently. There is no soft delete.
// @Tags Users
// @Accept json
// @Produce json
// @Param user body handlers.deleteInput true "Email of the user to delete"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Validation failed"
// @Failure 404 {object} utils.Payload "User not found"
// @Failure 500 {object} utils.Payload
// @Router /user/delete [delete]
func DeleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	var input deleteInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid input",
		})
		return
	}

	input.Email = validation.NormalizeEmail(input.Email)
	violations := validation.Validate(
		[]validation.FieldRules{validation.EmailRules()},
		map[string]string{"email": input.Email},
	)
	if len(violations) > 0 {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Validation failed",
			Data:    map[string]any{"violations": violations},
		})
		return
	}

	user, err := repositories.Users.FindByEmail(r.Context(), input.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
				Success: false,
				Message: "User not found",
			})
			return
		}
		log.Printf("delete user: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	if err := repositories.Users.Delete(r.Context(), user); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
				Success: false,
				Message: "User not found",
			})
			return
		}
		log.Printf("delete user: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "User deleted successfully",
	})
}

// GET /user/getAll
// GetAllUsers godoc
// @Summary List all users
// @Description Returns every user projecting fullName and email. Password hashes are never included.
// @Tags Users
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /user/getAll [get]
func GetAllUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	users, err := repositories.Users.FindAll(r.Context())
	if err != nil {
		log.Printf("list users: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	list := make([]map[string]any, 0, len(users))
	for _, u := range users {
		list = append(list, map[string]any{
			"fullName": u.FullName,
			"email":    u.Email,
		})
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Users retrieved successfully",
		Data:    map[string]any{"users": list},
	})
}

// POST /user/uploadImage
// UploadImage godoc
// @Summary Attach a profile image to a user
// @Description Accepts one JPEG, PNG or GIF up to 5 MiB. A user can have exactly one image; a second upload is rejected.
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Param email formData string true "Email of the owning user"
// @Param image formData file true "Profile image"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload "Validation, format, size or duplicate-image failure"
// @Failure 404 {object} utils.Payload "User not found"
// @Failure 500 {object} utils.Payload
// @Router /user/uploadImage [post]
func UploadImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.JSONResponse(w, http.StatusMethodNotAllowed, utils.Payload{
			Success: false,
			Message: "Method not allowed",
		})
		return
	}

	if err := r.ParseMultipartForm(repositories.MaxImageSize); err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Invalid file upload form",
		})
		return
	}

	email := validation.NormalizeEmail(r.FormValue("email"))
	violations := validation.Validate(
		[]validation.FieldRules{validation.EmailRules()},
		map[string]string{"email": email},
	)
	if len(violations) > 0 {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "Validation failed",
			Data:    map[string]any{"violations": violations},
		})
		return
	}

	user, err := repositories.Users.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			utils.JSONResponse(w, http.StatusNotFound, utils.Payload{
				Success: false,
				Message: "User not found",
			})
			return
		}
		log.Printf("upload image: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	if user.ImagePath != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "User already has an image",
		})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
			Success: false,
			Message: "No image provided",
		})
		return
	}
	defer file.Close()

	path, err := Images.Store(file, header)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInvalidImageType):
			utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
				Success: false,
				Message: "Only JPEG, PNG and GIF images are accepted",
			})
		case errors.Is(err, repositories.ErrImageTooLarge):
			utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
				Success: false,
				Message: "Image exceeds the 5 MiB limit",
			})
		default:
			log.Printf("upload image: %v", err)
			utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
				Success: false,
				Message: "Something went wrong",
			})
		}
		return
	}

	// Conditional update; a concurrent upload that won the race leaves
	// this one with zero affected rows and an orphan file to clean up.
	if err := repositories.Users.SetImagePath(r.Context(), user.ID, path); err != nil {
		if removeErr := Images.Remove(path); removeErr != nil {
			log.Printf("upload image: remove orphan %s: %v", path, removeErr)
		}
		if errors.Is(err, repositories.ErrImageAlreadySet) {
			utils.JSONResponse(w, http.StatusBadRequest, utils.Payload{
				Success: false,
				Message: "User already has an image",
			})
			return
		}
		log.Printf("upload image: %v", err)
		utils.JSONResponse(w, http.StatusInternalServerError, utils.Payload{
			Success: false,
			Message: "Something went wrong",
		})
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Image uploaded successfully",
		Data:    map[string]any{"filePath": path},
	})
}
