package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-intent/internal/apperr"
	"github.com/ashwinyue/next-intent/internal/service/dataset"
)

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int         `json:"code"`
	Msg     string      `json:"msg"`
	Details interface{} `json:"details,omitempty"`
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

// NoContent 无内容响应 (204)
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	abort(c, http.StatusBadRequest, msg, nil)
}

// NotFound 404 错误响应
func NotFound(c *gin.Context, msg string) {
	abort(c, http.StatusNotFound, msg, nil)
}

// InvalidData 数据校验失败，附带逐条错误与统计
func InvalidData(c *gin.Context, msg string, result *dataset.ValidationResult) {
	abort(c, http.StatusBadRequest, msg, result)
}

// Error 根据错误分类返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
		var e *apperr.Error
		if errors.As(err, &e) && e.Msg != "" {
			msg = e.Msg
		}
	}
	abort(c, status, msg, nil)
}

// StatusOf 错误分类对应的 HTTP 状态码
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrValidation:
		return http.StatusBadRequest
	case apperr.ErrUnauthenticated:
		return http.StatusUnauthorized
	case apperr.ErrPermissionDenied:
		return http.StatusForbidden
	case apperr.ErrNotFound, apperr.ErrNoTrainingData:
		return http.StatusNotFound
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrInsufficientData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, msg string, details interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: status, Msg: msg, Details: details})
}

// PaginationData 分页响应数据结构
type PaginationData struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages,omitempty"`
}

// SuccessWithPagination 分页成功响应
func SuccessWithPagination(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data: PaginationData{
			Items:      items,
			Total:      total,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
		},
	})
}
