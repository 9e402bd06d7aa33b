package handler

import (
	"net/http"

	"github.com/M4MEET/ct-web-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Password *string `json:"password"`
}

// ListUsers 列出租户下的后台用户。
func (a *API) ListUsers(c *gin.Context) {
	users, err := a.users.List(tenantIDOf(c))
	if err != nil {
		a.respondServiceError(c, err, "failed to list users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// CreateUser 新建用户，角色不能高于操作者。
func (a *API) CreateUser(c *gin.Context) {
	var payload createUserRequest
	if !bindJSON(c, &payload, "invalid user payload") {
		return
	}
	actor := principalActor(c)
	user, err := a.users.Create(tenantIDOf(c), service.UserInput{
		Email:    payload.Email,
		Name:     payload.Name,
		Password: payload.Password,
		Role:     payload.Role,
	}, actor.Permission)
	if err != nil {
		a.respondServiceError(c, err, "failed to create user")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (a *API) UpdateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var payload updateUserRequest
	if !bindJSON(c, &payload, "invalid user payload") {
		return
	}
	actor := principalActor(c)
	user, err := a.users.Update(tenantIDOf(c), id, service.UserUpdate{
		Name:     payload.Name,
		Role:     payload.Role,
		Password: payload.Password,
	}, actor)
	if err != nil {
		a.respondServiceError(c, err, "failed to update user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (a *API) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	actor := principalActor(c)
	if err := a.users.Delete(tenantIDOf(c), id, actor); err != nil {
		a.respondServiceError(c, err, "failed to delete user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}
