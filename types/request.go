package types

import "encoding/json"

type SignupRequest struct {
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Email    *string `json:"email"`
	Field    *string `json:"field"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

type UpdateProfileRequest struct {
	Username *string `json:"username"`
	Field    *string `json:"field"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type CreateTagRequest struct {
	PDFID     int64  `json:"pdf_id" binding:"required"`
	Color     string `json:"color"`
	TagDetail string `json:"tag_detail"`
}

type UpdateTagRequest struct {
	Color     *string `json:"color"`
	TagDetail *string `json:"tag_detail"`
}

type CreateHighlightRequest struct {
	PageID int64           `json:"page_id" binding:"required"`
	TagID  *int64          `json:"tag_id"`
	Text   string          `json:"text"`
	Color  string          `json:"color"`
	Rects  json.RawMessage `json:"rects"`
}

type UpdateHighlightRequest struct {
	TagID *int64          `json:"tag_id"`
	Text  *string         `json:"text"`
	Color *string         `json:"color"`
	Rects json.RawMessage `json:"rects"`
}

type SearchRequest struct {
	PDFID int64  `form:"pdf_id" binding:"required"`
	Query string `form:"q" binding:"required"`
	Limit int    `form:"limit"`
}
