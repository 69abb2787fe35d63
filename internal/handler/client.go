package handler

import (
	"database/sql"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/middleware"
	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/repository"
	"github.com/iliyamo/linkbio/internal/utils"
)

// ClientHandler serves super-admin client management and the signed-in
// client's own profile, settings, vCard and branding.
type ClientHandler struct {
	DB      *sql.DB
	Clients *repository.ClientRepo
	Links   *repository.LinkRepo
	Users   *repository.UserRepo
	Argon2  utils.Argon2Params
}

// ----- DTOs -----

type createClientReq struct {
	Slug     string  `json:"slug" validate:"required,slug"`
	Name     string  `json:"name" validate:"required,min=1,max=100"`
	Email    string  `json:"email" validate:"required,email,max=254"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
	Plan     *string `json:"plan" validate:"omitempty,oneof=free pro"`
}

func (r *createClientReq) normalize() {
	r.Slug = repository.NormalizeSlug(r.Slug)
	r.Email = repository.NormalizeEmail(r.Email)
}

type adminUpdateClientReq struct {
	Slug *string `json:"slug" validate:"omitempty,slug"`
	Name *string `json:"name" validate:"omitempty,min=1,max=100"`
	Plan *string `json:"plan" validate:"omitempty,oneof=free pro"`
}

func (r *adminUpdateClientReq) normalize() {
	if r.Slug != nil {
		s := repository.NormalizeSlug(*r.Slug)
		r.Slug = &s
	}
}

type updateProfileReq struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=100"`
	Bio             *string `json:"bio" validate:"omitempty,max=500"`
	MetaTitle       *string `json:"meta_title" validate:"omitempty,max=60"`
	MetaDescription *string `json:"meta_description" validate:"omitempty,max=160"`
}

type updateSettingsReq struct {
	PrimaryColor         *string `json:"primary_color" validate:"omitempty,hexcolor6"`
	SecondaryColor       *string `json:"secondary_color" validate:"omitempty,hexcolor6"`
	ButtonOpacity        *int    `json:"button_opacity" validate:"omitempty,min=0,max=100"`
	BackgroundType       *string `json:"background_type" validate:"omitempty,oneof=solid gradient image"`
	BackgroundValue      *string `json:"background_value" validate:"omitempty,max=2048"`
	OuterBackgroundColor *string `json:"outer_background_color" validate:"omitempty,hexcolor6"`
	FontPreset           *string `json:"font_preset" validate:"omitempty,max=50"`
	FontTitle            *string `json:"font_title" validate:"omitempty,max=100"`
	FontText             *string `json:"font_text" validate:"omitempty,max=100"`
	LayoutType           *string `json:"layout_type" validate:"omitempty,oneof=list cards grid premium"`
	ButtonStyle          *string `json:"button_style" validate:"omitempty,oneof=rounded pill square soft outline"`
}

type updateVCardReq struct {
	VCardEnabled *bool   `json:"vcard_enabled"`
	VCardName    *string `json:"vcard_name" validate:"omitempty,max=100"`
	VCardEmail   *string `json:"vcard_email" validate:"omitempty,max=254"`
	VCardPhone   *string `json:"vcard_phone" validate:"omitempty,max=50"`
	VCardCompany *string `json:"vcard_company" validate:"omitempty,max=100"`
	VCardWebsite *string `json:"vcard_website" validate:"omitempty,max=2048,weburl"`
}

type updateBrandingReq struct {
	LogoURL           *string `json:"logo_url" validate:"omitempty,max=2048,weburl"`
	ProfileImageURL   *string `json:"profile_image_url" validate:"omitempty,max=2048,weburl"`
	ProfileImageSize  *int    `json:"profile_image_size" validate:"omitempty,min=32,max=512"`
	ProfileImageShape *string `json:"profile_image_shape" validate:"omitempty,oneof=round rounded square"`
}

type clientWithLinks struct {
	model.Client
	Links []model.Link `json:"links"`
}

// ----- super admin -----

// List returns every client, newest first.
func (h *ClientHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Clients.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Get returns one client with its links in display order.
func (h *ClientHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Clients.GetByID(ctx, c.Param("id"))
	if err != nil {
		return fromRepo(err, "Client")
	}
	links, err := h.Links.ListByClient(ctx, cl.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, clientWithLinks{Client: cl, Links: links})
}

// Create adds a client and its owning user in one transaction.
func (h *ClientHandler) Create(c echo.Context) error {
	var req createClientReq
	if err := bind(c, &req); err != nil {
		return err
	}
	plan := model.PlanPro
	if req.Plan != nil {
		plan, _ = model.ParsePlan(*req.Plan)
	}
	hash, err := utils.HashPassword(req.Password, h.Argon2)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if exists, err := h.Users.EmailExists(ctx, req.Email); err != nil {
		return err
	} else if exists {
		return fromRepo(repository.ErrEmailTaken, "")
	}

	var (
		cl model.Client
		u  model.User
	)
	err = repository.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		var err error
		cl, err = h.Clients.CreateTx(ctx, tx, model.ClientCreate{Slug: req.Slug, Name: req.Name, Plan: plan})
		if err != nil {
			return err
		}
		u, err = h.Users.CreateTx(ctx, tx, model.UserCreate{
			Email:         req.Email,
			PasswordHash:  hash,
			EmailVerified: true,
			Role:          model.RoleClient,
			ClientID:      &cl.ID,
		})
		return err
	})
	if err != nil {
		return fromRepo(err, "Client")
	}
	return c.JSON(http.StatusCreated, echo.Map{"client": cl, "user": u})
}

// Update changes slug, name or plan of any client.
func (h *ClientHandler) Update(c echo.Context) error {
	var req adminUpdateClientReq
	if err := bind(c, &req); err != nil {
		return err
	}
	p := model.AdminClientPatch{Slug: req.Slug, Name: req.Name}
	if req.Plan != nil {
		plan, _ := model.ParsePlan(*req.Plan)
		p.Plan = &plan
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Clients.AdminUpdate(ctx, c.Param("id"), p)
	if err != nil {
		return fromRepo(err, "Client")
	}
	return c.JSON(http.StatusOK, cl)
}

// Delete removes a client and its links.
func (h *ClientHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Clients.Delete(ctx, c.Param("id")); err != nil {
		return fromRepo(err, "Client")
	}
	return c.JSON(http.StatusOK, okResp)
}

// ----- own client -----

// Me returns the caller's client as loaded for this request.
func (h *ClientHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.IdentityFrom(c).Client)
}

// UpdateMe edits name, bio and meta tags.
func (h *ClientHandler) UpdateMe(c echo.Context) error {
	var req updateProfileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.patch(c, model.ClientPatch{
		Name:            req.Name,
		Bio:             req.Bio,
		MetaTitle:       req.MetaTitle,
		MetaDescription: req.MetaDescription,
	})
}

// UpdateSettings edits colors, background, fonts and layout.
func (h *ClientHandler) UpdateSettings(c echo.Context) error {
	var req updateSettingsReq
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.patch(c, model.ClientPatch{
		PrimaryColor:         req.PrimaryColor,
		SecondaryColor:       req.SecondaryColor,
		ButtonOpacity:        req.ButtonOpacity,
		BackgroundType:       req.BackgroundType,
		BackgroundValue:      req.BackgroundValue,
		OuterBackgroundColor: req.OuterBackgroundColor,
		FontPreset:           req.FontPreset,
		FontTitle:            req.FontTitle,
		FontText:             req.FontText,
		LayoutType:           req.LayoutType,
		ButtonStyle:          req.ButtonStyle,
	})
}

// UpdateVCard edits the contact card fields.
func (h *ClientHandler) UpdateVCard(c echo.Context) error {
	var req updateVCardReq
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.patch(c, model.ClientPatch{
		VCardEnabled: req.VCardEnabled,
		VCardName:    req.VCardName,
		VCardEmail:   req.VCardEmail,
		VCardPhone:   req.VCardPhone,
		VCardCompany: req.VCardCompany,
		VCardWebsite: req.VCardWebsite,
	})
}

// UpdateBranding edits logo and profile image.
func (h *ClientHandler) UpdateBranding(c echo.Context) error {
	var req updateBrandingReq
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.patch(c, model.ClientPatch{
		LogoURL:           req.LogoURL,
		ProfileImageURL:   req.ProfileImageURL,
		ProfileImageSize:  req.ProfileImageSize,
		ProfileImageShape: req.ProfileImageShape,
	})
}

// patch applies p to the caller's client; the store marks it as draft.
func (h *ClientHandler) patch(c echo.Context, p model.ClientPatch) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Clients.Update(ctx, middleware.IdentityFrom(c).Client.ID, p)
	if err != nil {
		return fromRepo(err, "Client")
	}
	return c.JSON(http.StatusOK, cl)
}
