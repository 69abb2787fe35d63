package model

import "time"

// Client is a tenant's public profile as stored in the `clients` table.
// Nullable text columns are pointers so JSON renders them as null.
type Client struct {
	ID                   string     `json:"id"`
	Slug                 string     `json:"slug"`
	Name                 string     `json:"name"`
	LogoURL              *string    `json:"logoUrl"`
	ProfileImageURL      *string    `json:"profileImageUrl"`
	ProfileImageSize     int        `json:"profileImageSize"`
	ProfileImageShape    string     `json:"profileImageShape"`
	PrimaryColor         string     `json:"primaryColor"`
	SecondaryColor       string     `json:"secondaryColor"`
	ButtonOpacity        int        `json:"buttonOpacity"`
	BackgroundType       string     `json:"backgroundType"`
	BackgroundValue      string     `json:"backgroundValue"`
	OuterBackgroundColor string     `json:"outerBackgroundColor"`
	FontPreset           *string    `json:"fontPreset"`
	FontTitle            string     `json:"fontTitle"`
	FontText             string     `json:"fontText"`
	LayoutType           string     `json:"layoutType"`
	ButtonStyle          string     `json:"buttonStyle"`
	Bio                  *string    `json:"bio"`
	MetaTitle            *string    `json:"metaTitle"`
	MetaDescription      *string    `json:"metaDescription"`
	IsPublished          bool       `json:"isPublished"`
	HasDraftChanges      bool       `json:"hasDraftChanges"`
	VCardEnabled         bool       `json:"vcardEnabled"`
	VCardName            *string    `json:"vcardName"`
	VCardEmail           *string    `json:"vcardEmail"`
	VCardPhone           *string    `json:"vcardPhone"`
	VCardCompany         *string    `json:"vcardCompany"`
	VCardWebsite         *string    `json:"vcardWebsite"`
	Plan                 Plan       `json:"plan"`
	PlanExpiresAt        *time.Time `json:"planExpiresAt"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
	PublishedAt          *time.Time `json:"publishedAt"`
}

// State derives the publish state from the two persisted flags.
func (c *Client) State() PublishState {
	return StateOf(c.IsPublished, c.HasDraftChanges)
}

// ClientCreate holds the values for a new client row.  Everything else
// takes the column default.
type ClientCreate struct {
	Slug string
	Name string
	Plan Plan
}

// ClientPatch is a partial update of the tenant-editable columns.  Only
// non-nil fields are written.
type ClientPatch struct {
	// profile
	Name            *string
	Bio             *string
	MetaTitle       *string
	MetaDescription *string

	// settings
	PrimaryColor         *string
	SecondaryColor       *string
	ButtonOpacity        *int
	BackgroundType       *string
	BackgroundValue      *string
	OuterBackgroundColor *string
	FontPreset           *string
	FontTitle            *string
	FontText             *string
	LayoutType           *string
	ButtonStyle          *string

	// branding
	LogoURL           *string
	ProfileImageURL   *string
	ProfileImageSize  *int
	ProfileImageShape *string

	// vcard
	VCardEnabled *bool
	VCardName    *string
	VCardEmail   *string
	VCardPhone   *string
	VCardCompany *string
	VCardWebsite *string
}

// AdminClientPatch is what a super admin may change on any client.
type AdminClientPatch struct {
	Slug *string
	Name *string
	Plan *Plan
}

// PublishState is the position of a client in the publish state machine.
type PublishState string

const (
	// StateUnpublished: never published and nothing pending.
	StateUnpublished PublishState = "unpublished"
	// StateDraft: edits exist that the public page does not show yet.
	StateDraft PublishState = "draft"
	// StatePublishedClean: live and identical to the stored settings.
	StatePublishedClean PublishState = "published"
)

// StateOf maps the persisted flags onto a PublishState.
func StateOf(isPublished, hasDraftChanges bool) PublishState {
	switch {
	case hasDraftChanges:
		return StateDraft
	case isPublished:
		return StatePublishedClean
	default:
		return StateUnpublished
	}
}

// PublishStatus is the fresh read of a client's publication flags.
type PublishStatus struct {
	HasDraftChanges bool         `json:"hasDraftChanges"`
	IsPublished     bool         `json:"isPublished"`
	LastPublishedAt *time.Time   `json:"lastPublishedAt"`
	State           PublishState `json:"state"`
}

// PublishedClient is the directory entry for a live client.
type PublishedClient struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}
