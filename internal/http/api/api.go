package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/ledmanager/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/ledmanager/internal/model"
)

// APIError is the error half of every handler result.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string { return e.Message }

func NewError(code int, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// Response lets a handler pick a status other than 200.
type Response struct {
	Code int
	Body any
}

func Created(body any) Response { return Response{Code: http.StatusCreated, Body: body} }

type HandlerFuncWithAuth func(ctx *gin.Context, user *model.User) (any, *APIError)
type HandlerFunc func(ctx *gin.Context) (any, *APIError)

func ResolveEndpointWithAuth(h HandlerFuncWithAuth) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.GetCurrentUser(ctx)
		if !ok {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		result, apiErr := h(ctx, user)
		write(ctx, result, apiErr)
	}
}

func ResolveEndpoint(h HandlerFunc) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		result, apiErr := h(ctx)
		write(ctx, result, apiErr)
	}
}

func write(ctx *gin.Context, result any, apiErr *APIError) {
	if apiErr != nil {
		ctx.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
		return
	}
	switch r := result.(type) {
	case nil:
		ctx.Status(http.StatusNoContent)
	case Response:
		if r.Body == nil {
			ctx.Status(r.Code)
			return
		}
		ctx.JSON(r.Code, r.Body)
	default:
		ctx.JSON(http.StatusOK, result)
	}
}
