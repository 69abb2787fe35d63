package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/linkbio/internal/model"
	"github.com/iliyamo/linkbio/internal/repository"
)

// PublicCacheControl lets the page renderer and CDNs reuse public reads for
// a minute and serve stale copies while refetching.
const PublicCacheControl = "public, max-age=60, stale-while-revalidate=300"

// PublicHandler serves the read model of published pages.  It needs no
// session.
type PublicHandler struct {
	Clients *repository.ClientRepo
	Links   *repository.LinkRepo
}

// publicClient is the subset of a client a public page needs.  Plan is
// included so the renderer can show or hide the free-plan footer.
type publicClient struct {
	ID                   string     `json:"id"`
	Slug                 string     `json:"slug"`
	Name                 string     `json:"name"`
	LogoURL              *string    `json:"logoUrl"`
	ProfileImageURL      *string    `json:"profileImageUrl"`
	ProfileImageSize     int        `json:"profileImageSize"`
	ProfileImageShape    string     `json:"profileImageShape"`
	PrimaryColor         string     `json:"primaryColor"`
	SecondaryColor       string     `json:"secondaryColor"`
	BackgroundType       string     `json:"backgroundType"`
	BackgroundValue      string     `json:"backgroundValue"`
	OuterBackgroundColor string     `json:"outerBackgroundColor"`
	ButtonOpacity        int        `json:"buttonOpacity"`
	FontPreset           *string    `json:"fontPreset"`
	FontTitle            string     `json:"fontTitle"`
	FontText             string     `json:"fontText"`
	LayoutType           string     `json:"layoutType"`
	ButtonStyle          string     `json:"buttonStyle"`
	Bio                  *string    `json:"bio"`
	MetaTitle            *string    `json:"metaTitle"`
	MetaDescription      *string    `json:"metaDescription"`
	VCardEnabled         bool       `json:"vcardEnabled"`
	Plan                 model.Plan `json:"plan"`
}

type publicLink struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	URL             string  `json:"url"`
	Description     *string `json:"description"`
	Icon            *string `json:"icon"`
	ThumbnailURL    *string `json:"thumbnailUrl"`
	SocialPreset    *string `json:"socialPreset"`
	CustomBgColor   *string `json:"customBgColor"`
	CustomTextColor *string `json:"customTextColor"`
	SortOrder       int     `json:"sortOrder"`
}

type publicProfile struct {
	Client publicClient `json:"client"`
	Links  []publicLink `json:"links"`
}

func toPublic(cl model.Client, links []model.Link) publicProfile {
	p := publicProfile{
		Client: publicClient{
			ID:                   cl.ID,
			Slug:                 cl.Slug,
			Name:                 cl.Name,
			LogoURL:              cl.LogoURL,
			ProfileImageURL:      cl.ProfileImageURL,
			ProfileImageSize:     cl.ProfileImageSize,
			ProfileImageShape:    cl.ProfileImageShape,
			PrimaryColor:         cl.PrimaryColor,
			SecondaryColor:       cl.SecondaryColor,
			BackgroundType:       cl.BackgroundType,
			BackgroundValue:      cl.BackgroundValue,
			OuterBackgroundColor: cl.OuterBackgroundColor,
			ButtonOpacity:        cl.ButtonOpacity,
			FontPreset:           cl.FontPreset,
			FontTitle:            cl.FontTitle,
			FontText:             cl.FontText,
			LayoutType:           cl.LayoutType,
			ButtonStyle:          cl.ButtonStyle,
			Bio:                  cl.Bio,
			MetaTitle:            cl.MetaTitle,
			MetaDescription:      cl.MetaDescription,
			VCardEnabled:         cl.VCardEnabled,
			Plan:                 cl.Plan,
		},
		Links: make([]publicLink, 0, len(links)),
	}
	for _, l := range links {
		p.Links = append(p.Links, publicLink{
			ID:              l.ID,
			Title:           l.Title,
			URL:             l.URL,
			Description:     l.Description,
			Icon:            l.Icon,
			ThumbnailURL:    l.ThumbnailURL,
			SocialPreset:    l.SocialPreset,
			CustomBgColor:   l.CustomBgColor,
			CustomTextColor: l.CustomTextColor,
			SortOrder:       l.SortOrder,
		})
	}
	return p
}

// ListClients returns the directory of published clients, used by the
// renderer to enumerate pages.
func (h *PublicHandler) ListClients(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Clients.ListPublished(ctx)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", PublicCacheControl)
	return c.JSON(http.StatusOK, list)
}

// Profile returns a published client with its active links.  Unpublished
// and unknown slugs are both 404.
func (h *PublicHandler) Profile(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	cl, err := h.Clients.GetPublishedBySlug(ctx, c.Param("slug"))
	if err != nil {
		return fromRepo(err, "Client")
	}
	links, err := h.Links.ListActiveByClient(ctx, cl.ID)
	if err != nil {
		return err
	}
	c.Response().Header().Set("Cache-Control", PublicCacheControl)
	return c.JSON(http.StatusOK, toPublic(cl, links))
}
