package models

import (
	"database/sql"
	"time"
)

// Post represents a scheduled or published Bluesky post. Link, image and alt
// text slots mirror the four-attachment limit of a Bluesky post record; empty
// strings mean "unset".
type Post struct {
	ID       int64          `gorm:"primaryKey;autoIncrement;column:id"`
	Text     string         `gorm:"type:varchar(300);not null;column:text"`
	Username sql.NullString `gorm:"type:varchar(100);column:bluesky_username"`

	Link1               string `gorm:"type:varchar(300);not null;default:'';column:link_1"`
	Link2               string `gorm:"type:varchar(300);not null;default:'';column:link_2"`
	Link3               string `gorm:"type:varchar(300);not null;default:'';column:link_3"`
	Link4               string `gorm:"type:varchar(300);not null;default:'';column:link_4"`
	LinkCardTitle       string `gorm:"type:varchar(100);not null;default:'';column:link_card_title"`
	LinkCardDescription string `gorm:"type:varchar(100);not null;default:'';column:link_card_description"`

	Image1 string `gorm:"type:varchar(200);not null;default:'';column:image_1"`
	Image2 string `gorm:"type:varchar(200);not null;default:'';column:image_2"`
	Image3 string `gorm:"type:varchar(200);not null;default:'';column:image_3"`
	Image4 string `gorm:"type:varchar(200);not null;default:'';column:image_4"`
	Alt1   string `gorm:"type:varchar(500);not null;default:'';column:alt_1"`
	Alt2   string `gorm:"type:varchar(500);not null;default:'';column:alt_2"`
	Alt3   string `gorm:"type:varchar(500);not null;default:'';column:alt_3"`
	Alt4   string `gorm:"type:varchar(500);not null;default:'';column:alt_4"`

	IsDraft     bool          `gorm:"not null;default:true;column:is_draft"`
	CreatedAt   time.Time     `gorm:"not null;autoCreateTime;column:created_at"`
	UpdatedAt   time.Time     `gorm:"not null;autoUpdateTime;column:updated_at"`
	PostedAt    sql.NullTime  `gorm:"column:posted_at"`
	CID         string        `gorm:"type:varchar(300);not null;default:'';column:cid"`
	URI         string        `gorm:"type:varchar(300);not null;default:'';column:uri"`
	ScheduledAt sql.NullTime  `gorm:"column:scheduled_post_time"`
	Error       string        `gorm:"type:varchar(2000);not null;default:'';column:error"`
	ReplyToID   sql.NullInt64 `gorm:"column:reply_to_id"`

	// Relationships
	Account *Account `gorm:"foreignKey:Username;references:Username"`
	ReplyTo *Post    `gorm:"foreignKey:ReplyToID;references:ID"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "scheduler_posts"
}

// IsPublished reports whether the post has gone out: either the full
// cid+uri receipt or a posted-at timestamp counts.
func (p *Post) IsPublished() bool {
	return (p.CID != "" && p.URI != "") || p.PostedAt.Valid
}

// HasFullReceipt reports whether all three publish fields are present.
// Reply posts may only anchor onto a parent with a complete receipt.
func (p *Post) HasFullReceipt() bool {
	return p.CID != "" && p.URI != "" && p.PostedAt.Valid
}

// HasPartialPublishData reports whether some but not all of cid, uri and
// posted-at are set. This state never arises from a clean publish and is
// treated as a data-integrity fault.
func (p *Post) HasPartialPublishData() bool {
	any := p.CID != "" || p.URI != "" || p.PostedAt.Valid
	return any && !p.HasFullReceipt()
}

// Links returns the non-empty link slots in order.
func (p *Post) Links() []string {
	raw := []string{p.Link1, p.Link2, p.Link3, p.Link4}
	links := make([]string, 0, len(raw))
	for _, link := range raw {
		if link != "" {
			links = append(links, link)
		}
	}
	return links
}

// ImagesWithAlts returns the non-empty image slots paired with their alt
// texts, order preserved. Alt texts are matched positionally against the
// compacted image list.
func (p *Post) ImagesWithAlts() []ImageRef {
	rawImages := []string{p.Image1, p.Image2, p.Image3, p.Image4}
	rawAlts := []string{p.Alt1, p.Alt2, p.Alt3, p.Alt4}

	images := make([]string, 0, len(rawImages))
	for _, image := range rawImages {
		if image != "" {
			images = append(images, image)
		}
	}

	refs := make([]ImageRef, 0, len(images))
	for i, image := range images {
		refs = append(refs, ImageRef{Path: image, AltText: rawAlts[i]})
	}
	return refs
}

// IsLinkCard reports whether the post renders as a link card: exactly one
// link plus a card title and description.
func (p *Post) IsLinkCard() bool {
	return len(p.Links()) == 1 && p.LinkCardTitle != "" && p.LinkCardDescription != ""
}

// Status classifies the post for observability. It is derived state and
// plays no part in scheduling decisions.
func (p *Post) Status() string {
	switch {
	case p.IsDraft && p.Error != "":
		return "error"
	case p.IsDraft:
		return "draft"
	case p.IsPublished():
		return "published"
	default:
		return "scheduled"
	}
}

// ParentID returns the reply-to post id, or 0 when the post is not a reply.
func (p *Post) ParentID() int64 {
	if p.ReplyToID.Valid {
		return p.ReplyToID.Int64
	}
	return 0
}

// Payload maps the post into the transport-agnostic form handed to the
// publisher.
func (p *Post) Payload() PostPayload {
	username := ""
	if p.Username.Valid {
		username = p.Username.String
	}
	return PostPayload{
		ID:                  p.ID,
		Text:                p.Text,
		Username:            username,
		Links:               p.Links(),
		LinkCardTitle:       p.LinkCardTitle,
		LinkCardDescription: p.LinkCardDescription,
		IsLinkCard:          p.IsLinkCard(),
		Images:              p.ImagesWithAlts(),
		ReplyTo:             p.ParentID(),
	}
}

// ImageRef pairs an image storage path with its alt text.
type ImageRef struct {
	Path    string `json:"path"`
	AltText string `json:"alt_text"`
}

// PostPayload is the transport-agnostic shape handed to the publisher for a
// post whose scheduled time has arrived. ReplyTo is 0 for top-level posts.
type PostPayload struct {
	ID                  int64      `json:"id"`
	Text                string     `json:"text"`
	Username            string     `json:"username"`
	Links               []string   `json:"links"`
	LinkCardTitle       string     `json:"link_card_title"`
	LinkCardDescription string     `json:"link_card_description"`
	IsLinkCard          bool       `json:"is_link_card"`
	Images              []ImageRef `json:"images"`
	ReplyTo             int64      `json:"reply_to"`
}
