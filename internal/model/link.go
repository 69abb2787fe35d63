package model

import "time"

// Link is an ordered item on a client's page (`links` table).
// SocialPreset and the custom colors are alternatives: a preset implies the
// preset's styling, without one the custom colors apply.
type Link struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"clientId"`
	Title           string    `json:"title"`
	URL             string    `json:"url"`
	Description     *string   `json:"description"`
	Icon            *string   `json:"icon"`
	ThumbnailURL    *string   `json:"thumbnailUrl"`
	SocialPreset    *string   `json:"socialPreset"`
	CustomBgColor   *string   `json:"customBgColor"`
	CustomTextColor *string   `json:"customTextColor"`
	IsActive        bool      `json:"isActive"`
	SortOrder       int       `json:"sortOrder"`
	IsDraft         bool      `json:"isDraft"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// LinkCreate holds the caller-supplied fields of a new link.  IsActive
// defaults to true when nil.  SortOrder is always assigned by the store.
type LinkCreate struct {
	Title           string
	URL             string
	Description     *string
	Icon            *string
	ThumbnailURL    *string
	SocialPreset    *string
	CustomBgColor   *string
	CustomTextColor *string
	IsActive        *bool
}

// LinkPatch is a partial link update; nil fields are left untouched.
type LinkPatch struct {
	Title           *string
	URL             *string
	Description     *string
	Icon            *string
	ThumbnailURL    *string
	SocialPreset    *string
	CustomBgColor   *string
	CustomTextColor *string
	IsActive        *bool
}

// LinkOrder assigns a new position to one link in a reorder request.
type LinkOrder struct {
	ID        string `json:"id"`
	SortOrder int    `json:"sort_order"`
}
