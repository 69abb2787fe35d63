package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/middleware"
	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/repository"
)

// LinkHandler serves the caller's links.  Every lookup and mutation is
// scoped by the caller's client id, so another tenant's link is a 404.
type LinkHandler struct {
	Links *repository.LinkRepo
}

// ----- DTOs -----

type createLinkReq struct {
	Title           string  `json:"title" validate:"required,min=1,max=100"`
	URL             string  `json:"url" validate:"required,min=1,max=2048"`
	Description     *string `json:"description" validate:"omitempty,max=200"`
	Icon            *string `json:"icon" validate:"omitempty,max=100"`
	ThumbnailURL    *string `json:"thumbnail_url" validate:"omitempty,max=2048"`
	SocialPreset    *string `json:"social_preset" validate:"omitempty,max=50"`
	CustomBgColor   *string `json:"custom_bg_color" validate:"omitempty,max=32"`
	CustomTextColor *string `json:"custom_text_color" validate:"omitempty,max=32"`
	IsActive        *bool   `json:"is_active"`
}

type updateLinkReq struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=100"`
	URL             *string `json:"url" validate:"omitempty,min=1,max=2048"`
	Description     *string `json:"description" validate:"omitempty,max=200"`
	Icon            *string `json:"icon" validate:"omitempty,max=100"`
	ThumbnailURL    *string `json:"thumbnail_url" validate:"omitempty,max=2048"`
	SocialPreset    *string `json:"social_preset" validate:"omitempty,max=50"`
	CustomBgColor   *string `json:"custom_bg_color" validate:"omitempty,max=32"`
	CustomTextColor *string `json:"custom_text_color" validate:"omitempty,max=32"`
	IsActive        *bool   `json:"is_active"`
}

type reorderItem struct {
	ID        string `json:"id" validate:"required"`
	SortOrder *int   `json:"sort_order" validate:"required,min=0,max=10000"`
}

type reorderReq struct {
	Order []reorderItem `json:"order" validate:"required,min=1,max=500,dive"`
}

func clientID(c echo.Context) string { return middleware.IdentityFrom(c).Client.ID }

// List returns the caller's links in display order.
func (h *LinkHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	links, err := h.Links.ListByClient(ctx, clientID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, links)
}

func (h *LinkHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	l, err := h.Links.GetByIDAndClient(ctx, c.Param("id"), clientID(c))
	if err != nil {
		return fromRepo(err, "Link")
	}
	return c.JSON(http.StatusOK, l)
}

// Create appends a link at the end of the list.
func (h *LinkHandler) Create(c echo.Context) error {
	var req createLinkReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	l, err := h.Links.Create(ctx, clientID(c), model.LinkCreate{
		Title:           req.Title,
		URL:             req.URL,
		Description:     req.Description,
		Icon:            req.Icon,
		ThumbnailURL:    req.ThumbnailURL,
		SocialPreset:    req.SocialPreset,
		CustomBgColor:   req.CustomBgColor,
		CustomTextColor: req.CustomTextColor,
		IsActive:        req.IsActive,
	})
	if err != nil {
		return fromRepo(err, "Link")
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *LinkHandler) Update(c echo.Context) error {
	var req updateLinkReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	l, err := h.Links.UpdateByIDAndClient(ctx, c.Param("id"), clientID(c), model.LinkPatch{
		Title:           req.Title,
		URL:             req.URL,
		Description:     req.Description,
		Icon:            req.Icon,
		ThumbnailURL:    req.ThumbnailURL,
		SocialPreset:    req.SocialPreset,
		CustomBgColor:   req.CustomBgColor,
		CustomTextColor: req.CustomTextColor,
		IsActive:        req.IsActive,
	})
	if err != nil {
		return fromRepo(err, "Link")
	}
	return c.JSON(http.StatusOK, l)
}

func (h *LinkHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Links.DeleteByIDAndClient(ctx, c.Param("id"), clientID(c)); err != nil {
		return fromRepo(err, "Link")
	}
	return c.JSON(http.StatusOK, okResp)
}

// Reorder applies every new position or none.
func (h *LinkHandler) Reorder(c echo.Context) error {
	var req reorderReq
	if err := bind(c, &req); err != nil {
		return err
	}
	order := make([]model.LinkOrder, len(req.Order))
	for i, it := range req.Order {
		order[i] = model.LinkOrder{ID: it.ID, SortOrder: *it.SortOrder}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Links.Reorder(ctx, clientID(c), order); err != nil {
		return fromRepo(err, "Link")
	}
	return c.JSON(http.StatusOK, okResp)
}

// Toggle flips is_active and returns the updated link.
func (h *LinkHandler) Toggle(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	l, err := h.Links.Toggle(ctx, c.Param("id"), clientID(c))
	if err != nil {
		return fromRepo(err, "Link")
	}
	return c.JSON(http.StatusOK, l)
}
