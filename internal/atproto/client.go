package atproto

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
	"github.com/andyscpalmer/atproto-scheduler/pkg/logging"
	"github.com/andyscpalmer/atproto-scheduler/pkg/telemetry"
)

// PostWriter is the repository capability needed to record publish outcomes.
type PostWriter interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	MarkPublished(ctx context.Context, id int64, cid, uri string, postedAt time.Time) error
	MarkDraft(ctx context.Context, id int64) error
	RecordError(ctx context.Context, id int64, message string) error
}

// ImageFetcher retrieves image bytes by storage path.
type ImageFetcher interface {
	GetImage(ctx context.Context, path string) ([]byte, error)
}

// SessionCache keeps login sessions across ticks so each account does not
// re-authenticate every dispatch. Implementations must return (nil, nil) on
// a miss.
type SessionCache interface {
	GetSession(ctx context.Context, username string) (*Session, error)
	PutSession(ctx context.Context, username string, session *Session) error
}

// Publisher sends due posts to Bluesky and records the outcome on each post:
// cid+uri receipt and posted-at on success, draft + error text on failure.
type Publisher struct {
	xrpc     *XRPCClient
	store    PostWriter
	images   ImageFetcher
	sessions SessionCache
	logger   *zap.Logger
	now      func() time.Time
}

// NewPublisher creates a publisher against the given PDS host. images and
// sessions may be nil; image posts then fail to draft and logins are not
// reused.
func NewPublisher(host string, store PostWriter, images ImageFetcher, sessions SessionCache) *Publisher {
	logger := logging.WithComponent("atproto-publisher")
	return &Publisher{
		xrpc:     NewXRPCClient(host, logger),
		store:    store,
		images:   images,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Publish logs into the account and sends each payload in order. Per-post
// failures are recorded on the post and do not stop the batch; a failed
// login fails the whole account.
func (p *Publisher) Publish(ctx context.Context, account *models.Account, posts []models.PostPayload) error {
	ctx, span := telemetry.StartSpan(ctx, "atproto.publish")
	defer span.End()

	session, err := p.session(ctx, account)
	if err != nil {
		return fmt.Errorf("login for %s: %w", account.Username, err)
	}

	for _, post := range posts {
		if err := p.publishOne(ctx, session, post); err != nil {
			p.logger.Error("Failed to record outcome for post",
				zap.Int64("post_id", post.ID),
				zap.Error(err))
		}
	}
	return nil
}

// session returns a cached session for the account or performs a fresh
// login.
func (p *Publisher) session(ctx context.Context, account *models.Account) (*Session, error) {
	if p.sessions != nil {
		cached, err := p.sessions.GetSession(ctx, account.Username)
		if err != nil {
			p.logger.Debug("Session cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	session, err := p.xrpc.CreateSession(ctx, account.Username, account.AppPassword)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Logged into Bluesky", zap.String("account", account.Username))

	if p.sessions != nil {
		if err := p.sessions.PutSession(ctx, account.Username, session); err != nil {
			p.logger.Debug("Session cache write failed", zap.Error(err))
		}
	}
	return session, nil
}

// publishOne builds and creates the post record. A publish failure is
// recorded on the post (draft + error text); the returned error covers only
// repository write failures.
func (p *Publisher) publishOne(ctx context.Context, session *Session, post models.PostPayload) error {
	ctx, span := telemetry.StartSpan(ctx, "atproto.publish_post")
	defer span.End()

	record := feedPost{
		Type:      "app.bsky.feed.post",
		Text:      post.Text,
		CreatedAt: p.now().UTC().Format(time.RFC3339),
	}

	if post.ReplyTo != 0 {
		ref, ready, err := p.parentRef(ctx, post.ReplyTo)
		if err != nil {
			return err
		}
		if !ready {
			// The parent has not gone out yet; the next scheduling pass
			// reconciles the reply's slot.
			p.logger.Info("Parent not published yet, deferring reply",
				zap.Int64("post_id", post.ID),
				zap.Int64("parent_id", post.ReplyTo))
			return nil
		}
		record.Reply = &replyRef{Root: ref, Parent: ref}
	}

	// Bare links are appended to the text and marked up as link facets;
	// a link card renders the single link through the embed instead.
	if len(post.Links) > 0 && !post.IsLinkCard {
		text := post.Text + "\n"
		for _, link := range post.Links {
			text += link + "\n"
		}
		record.Text = text
		record.Facets = linkFacets(text)
	}

	switch {
	case len(post.Images) > 0:
		embed, err := p.imageEmbed(ctx, session, post)
		if err != nil {
			return p.failPost(ctx, post.ID, fmt.Sprintf("image upload: %v", err))
		}
		record.Embed = embed
	case post.IsLinkCard:
		record.Embed = &externalEmbed{
			Type: "app.bsky.embed.external",
			External: externalCard{
				URI:         post.Links[0],
				Title:       post.LinkCardTitle,
				Description: post.LinkCardDescription,
			},
		}
	}

	ref, err := p.xrpc.CreateRecord(ctx, session.AccessJwt, session.DID, record)
	if err != nil {
		return p.failPost(ctx, post.ID, err.Error())
	}

	if err := p.store.MarkPublished(ctx, post.ID, ref.CID, ref.URI, p.now().UTC()); err != nil {
		return err
	}
	if err := p.store.RecordError(ctx, post.ID, ""); err != nil {
		return err
	}

	p.logger.Info("Published post",
		zap.Int64("post_id", post.ID),
		zap.String("account", post.Username),
		zap.String("uri", ref.URI))
	return nil
}

// parentRef resolves a reply's parent into a strong ref. ready is false when
// the parent is missing or lacks a complete receipt.
func (p *Publisher) parentRef(ctx context.Context, parentID int64) (strongRef, bool, error) {
	parent, err := p.store.GetByID(ctx, parentID)
	if err != nil {
		return strongRef{}, false, fmt.Errorf("look up parent post %d: %w", parentID, err)
	}
	if parent == nil || !parent.HasFullReceipt() {
		return strongRef{}, false, nil
	}
	return strongRef{CID: parent.CID, URI: parent.URI}, true, nil
}

// imageEmbed fetches and uploads each image, pairing it with its alt text.
func (p *Publisher) imageEmbed(ctx context.Context, session *Session, post models.PostPayload) (*imagesEmbed, error) {
	if p.images == nil {
		return nil, fmt.Errorf("no image storage configured")
	}

	embed := &imagesEmbed{Type: "app.bsky.embed.images"}
	for _, ref := range post.Images {
		data, err := p.images.GetImage(ctx, ref.Path)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", ref.Path, err)
		}
		blob, err := p.xrpc.UploadBlob(ctx, session.AccessJwt, data)
		if err != nil {
			return nil, err
		}
		embed.Images = append(embed.Images, embedImage{Alt: ref.AltText, Image: blob})
	}
	return embed, nil
}

// failPost reverts a post to draft and records why.
func (p *Publisher) failPost(ctx context.Context, id int64, message string) error {
	p.logger.Warn("Publish failed, reverting post to draft",
		zap.Int64("post_id", id),
		zap.String("error", message))

	if err := p.store.MarkDraft(ctx, id); err != nil {
		return err
	}
	return p.store.RecordError(ctx, id, message)
}

// linkFacets marks up every URL in text as a link facet, normalizing
// scheme-less URLs to https.
func linkFacets(text string) []facet {
	spans := ExtractLinkSpans(text)
	facets := make([]facet, 0, len(spans))
	for _, span := range spans {
		uri := span.Text
		if !strings.HasPrefix(uri, "http") {
			uri = "https://" + uri
		}
		facets = append(facets, facet{
			Index: byteSlice{ByteStart: span.ByteStart, ByteEnd: span.ByteEnd},
			Features: []facetFeature{{
				Type: "app.bsky.richtext.facet#link",
				URI:  uri,
			}},
		})
	}
	return facets
}
