package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"DiaBot/middleware"
	"DiaBot/models"
	"DiaBot/pkg/store"
	utils "DiaBot/pkg/utills"

	"github.com/gin-gonic/gin"
)

const (
	dateLayout        = "2006-01-02"
	minPasswordLength = 8
)

// userView is the public profile shape. DiagnoseDate shadows the embedded
// field so dates render as plain days.
type userView struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	models.Profile
	DiagnoseDate *string   `json:"diagnose_date"`
	CreatedOn    time.Time `json:"created_on"`
}

func newUserView(u *models.User) userView {
	v := userView{ID: u.ID, Email: u.Email, FullName: u.FullName, Profile: u.Profile, CreatedOn: u.CreatedAt}
	if u.DiagnoseDate != nil {
		d := u.DiagnoseDate.Format(dateLayout)
		v.DiagnoseDate = &d
	}
	return v
}

// userUpdate starts from the stored values; keys absent from the body keep
// them and an explicit null clears an optional field.
type userUpdate struct {
	Email    string  `json:"email"`
	FullName string  `json:"full_name"`
	Password *string `json:"password"`
	models.Profile
	DiagnoseDate *string `json:"diagnose_date"`
}

func userID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ListUsers returns every active user.
func (h *Handler) ListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := h.Users.ListActive(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		out := make([]userView, 0, len(users))
		for i := range users {
			out = append(out, newUserView(&users[i]))
		}
		c.JSON(http.StatusOK, gin.H{"users": out})
	}
}

func (h *Handler) GetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found!"})
			return
		}
		user, err := h.Users.Get(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found!"})
			return
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": newUserView(user)})
	}
}

// UpdateUser applies a partial profile update. Callers may only edit themselves.
func (h *Handler) UpdateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := userID(c)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found!"})
			return
		}
		if caller := middleware.CurrentIdentity(c); caller == nil || caller.UserID != id {
			c.JSON(http.StatusForbidden, gin.H{"message": "cannot update another user"})
			return
		}

		ctx := c.Request.Context()
		user, err := h.Users.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found!"})
			return
		}
		if err != nil {
			abortWithError(c, err)
			return
		}

		body := userUpdate{Email: user.Email, FullName: user.FullName, Profile: user.Profile}
		if user.DiagnoseDate != nil {
			d := user.DiagnoseDate.Format(dateLayout)
			body.DiagnoseDate = &d
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request"})
			return
		}

		email := store.NormalizeEmail(body.Email)
		fullName := strings.TrimSpace(body.FullName)
		if email == "" || fullName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"message": "email and full_name cannot be empty"})
			return
		}

		var diagnosed *time.Time
		if body.DiagnoseDate != nil {
			t, err := time.Parse(dateLayout, strings.TrimSpace(*body.DiagnoseDate))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "diagnose_date must be YYYY-MM-DD"})
				return
			}
			diagnosed = &t
		}

		if body.Password != nil {
			if !utils.ValidPassword(*body.Password, minPasswordLength) {
				c.JSON(http.StatusBadRequest, gin.H{"message": "New password must be at least 8 characters with one letter and one number"})
				return
			}
			if err := user.SetPassword(*body.Password); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to set password"})
				return
			}
		}

		user.Email = email
		user.FullName = fullName
		user.Profile = body.Profile
		user.DiagnoseDate = diagnosed
		if err := h.Users.Save(ctx, user); err != nil {
			if errors.Is(err, store.ErrEmailExists) {
				c.JSON(http.StatusConflict, gin.H{"message": "Email already exists"})
				return
			}
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User updated successfully!"})
	}
}
