// Package notion upserts notebooks into a Notion database: find-or-create
// pages by title, replace page bodies, attach page images and a PDF
// reference.
package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jomei/notionapi"
)

// Property names renotion maintains on the destination database. The
// title property's name is NOT fixed across databases and is resolved
// structurally at runtime instead.
const (
	propPDFLink  = "PDF Link"
	propTags     = "Tags"
	propCreated  = "Created"
	propModified = "Last Modified"
)

// headingText titles the OCR body section on every page.
const headingText = "OCR Extracted Text"

// maxTextBlockLength is Notion's hard cap on a rich-text block. Text
// beyond it is dropped, not chunked into further blocks.
const maxTextBlockLength = 2000

// Page is the upsert target: a page in the destination database. Its ID
// joins all attachment calls within one notebook's processing.
type Page struct {
	ID    string
	Title string
}

// CreatePageParams carries everything needed to create a notebook page.
// Timestamps are RFC3339 strings, empty when unknown.
type CreatePageParams struct {
	Title        string
	Text         string
	Tags         []string
	CreatedTime  string
	ModifiedTime string
}

// Client wraps the Notion API client with rate limiting and the upsert
// operations the sync engine needs.
type Client struct {
	api        *notionapi.Client
	databaseID notionapi.DatabaseID
	limiter    *RateLimiter
	uploader   *FileUploader
	logger     *slog.Logger
}

// NewClient creates a rate-limited client for one destination database.
func NewClient(token, databaseID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:        notionapi.NewClient(notionapi.Token(token)),
		databaseID: notionapi.DatabaseID(databaseID),
		limiter:    DefaultRateLimiter(),
		uploader:   NewFileUploader(token, logger),
		logger:     logger,
	}
}

// VerifyConnection checks the token can read the configured database.
func (c *Client) VerifyConnection(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := c.api.Database.Get(ctx, c.databaseID); err != nil {
		return fmt.Errorf("verifying Notion connection: %w", c.handleError(err))
	}

	c.logger.Debug("Notion connection verified", "database_id", c.databaseID)
	return nil
}

// EnsureDatabaseProperties adds the properties renotion writes (PDF Link,
// Tags, Created, Last Modified) to the database schema. Failure is only a
// warning: the properties may already exist with a conflicting shape, and
// page writes will surface anything that actually matters.
func (c *Client) EnsureDatabaseProperties(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.api.Database.Update(ctx, c.databaseID, &notionapi.DatabaseUpdateRequest{
		Properties: notionapi.PropertyConfigs{
			propPDFLink: notionapi.URLPropertyConfig{
				Type: notionapi.PropertyConfigTypeURL,
			},
			propTags: notionapi.MultiSelectPropertyConfig{
				Type:        notionapi.PropertyConfigTypeMultiSelect,
				MultiSelect: notionapi.Select{Options: []notionapi.Option{}},
			},
			propCreated: notionapi.DatePropertyConfig{
				Type: notionapi.PropertyConfigTypeDate,
			},
			propModified: notionapi.DatePropertyConfig{
				Type: notionapi.PropertyConfigTypeDate,
			},
		},
	})
	if err != nil {
		c.logger.Warn("failed to update database schema (properties may already exist)", "error", err)
		return nil
	}

	c.logger.Debug("database properties ensured")
	return nil
}

// titlePropertyKey finds the property key whose type is title. The title
// property's name varies per database, so the probe is structural: first
// entry with the title type tag wins.
func titlePropertyKey(props notionapi.PropertyConfigs) (string, bool) {
	for key, cfg := range props {
		if cfg.GetType() == notionapi.PropertyConfigTypeTitle {
			return key, true
		}
	}
	return "", false
}

// titleKey resolves the database's title property key, needed for writes.
func (c *Client) titleKey(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	db, err := c.api.Database.Get(ctx, c.databaseID)
	if err != nil {
		return "", fmt.Errorf("fetching database schema: %w", c.handleError(err))
	}

	key, ok := titlePropertyKey(db.Properties)
	if !ok {
		return "", errors.New("no title property found in database")
	}
	return key, nil
}

// titleFromProperties extracts a page's title from its property set by
// runtime type, returning the plain text of the first rich-text run.
func titleFromProperties(props notionapi.Properties) (string, bool) {
	for _, prop := range props {
		if titleProp, ok := prop.(*notionapi.TitleProperty); ok {
			if len(titleProp.Title) == 0 {
				return "", true
			}
			return titleProp.Title[0].PlainText, true
		}
	}
	return "", false
}

// FindPageByTitle looks for an existing page with an exactly matching
// title. The match is client-side and structural since the title
// property's key is not fixed. A query failure degrades to "no match" so
// the caller falls back to page creation instead of aborting.
func (c *Client) FindPageByTitle(ctx context.Context, title string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.logger.Debug("searching for page", "title", title)

	resp, err := c.api.Database.Query(ctx, c.databaseID, &notionapi.DatabaseQueryRequest{
		PageSize: 100,
	})
	if err != nil {
		c.logger.Warn("page query failed, treating as no match", "title", title, "error", c.handleError(err))
		return nil, nil
	}

	for _, page := range resp.Results {
		if pageTitle, ok := titleFromProperties(page.Properties); ok && pageTitle == title {
			c.logger.Debug("found existing page", "id", page.ID)
			return &Page{ID: string(page.ID), Title: title}, nil
		}
	}

	c.logger.Debug("no existing page found", "title", title)
	return nil, nil
}

// CreatePage creates a fresh page with metadata properties and the OCR
// body blocks.
func (c *Client) CreatePage(ctx context.Context, p CreatePageParams) (*Page, error) {
	titleKey, err := c.titleKey(ctx)
	if err != nil {
		return nil, err
	}

	properties := notionapi.Properties{
		titleKey: notionapi.TitleProperty{
			Title: richText(p.Title),
		},
	}
	if len(p.Tags) > 0 {
		properties[propTags] = notionapi.MultiSelectProperty{
			MultiSelect: tagOptions(p.Tags),
		}
	}
	if date, ok := parseDate(p.CreatedTime); ok {
		properties[propCreated] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: date},
		}
	}
	if date, ok := parseDate(p.ModifiedTime); ok {
		properties[propModified] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: date},
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: c.databaseID,
		},
		Properties: properties,
		Children:   bodyBlocks(p.Text),
	})
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", c.handleError(err))
	}

	c.logger.Debug("created page", "id", page.ID, "title", p.Title)
	return &Page{ID: string(page.ID), Title: p.Title}, nil
}

// UpdatePage replaces an existing page's body: patch tags when present,
// delete every top-level block, then append a fresh heading and text
// pair. The tag patch and the block replacement are independent round
// trips with no rollback between them.
func (c *Client) UpdatePage(ctx context.Context, pageID, text string, tags []string) error {
	if len(tags) > 0 {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
			Properties: notionapi.Properties{
				propTags: notionapi.MultiSelectProperty{
					MultiSelect: tagOptions(tags),
				},
			},
		})
		if err != nil {
			c.logger.Warn("failed to update tags", "page_id", pageID, "error", err)
		}
	}

	blocks, err := c.listChildren(ctx, pageID)
	if err != nil {
		return fmt.Errorf("listing page blocks: %w", err)
	}

	for _, block := range blocks {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := c.api.Block.Delete(ctx, block.GetID()); err != nil {
			return fmt.Errorf("deleting block %s: %w", block.GetID(), c.handleError(err))
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = c.api.Block.AppendChildren(ctx, notionapi.BlockID(pageID), &notionapi.AppendBlockChildrenRequest{
		Children: bodyBlocks(text),
	})
	if err != nil {
		return fmt.Errorf("appending page body: %w", c.handleError(err))
	}

	c.logger.Debug("updated page", "id", pageID)
	return nil
}

// listChildren fetches all top-level child blocks of a page.
func (c *Client) listChildren(ctx context.Context, pageID string) ([]notionapi.Block, error) {
	var all []notionapi.Block
	var cursor notionapi.Cursor

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := c.api.Block.GetChildren(ctx, notionapi.BlockID(pageID), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return nil, c.handleError(err)
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			return all, nil
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}
}

// AttachImages uploads page images into Notion storage and appends them
// as image blocks. A no-op when imagePaths is empty; individual upload
// failures drop that image but keep the rest.
func (c *Client) AttachImages(ctx context.Context, pageID string, imagePaths []string) error {
	if len(imagePaths) == 0 {
		return nil
	}
	return c.uploader.AttachImages(ctx, pageID, imagePaths)
}

// SetPDFURL points the PDF Link property at an uploaded PDF.
func (c *Client) SetPDFURL(ctx context.Context, pageID, url string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			propPDFLink: notionapi.URLProperty{URL: url},
		},
	})
	if err != nil {
		return fmt.Errorf("setting PDF link: %w", c.handleError(err))
	}

	c.logger.Debug("set PDF URL", "page_id", pageID, "url", url)
	return nil
}

// SetLocalPDFLink sets the PDF Link property to a file:// path on the
// machine running the sync. Non-portable, but the best available when
// Drive isn't configured; a failure (the property may not exist) is
// logged and swallowed.
func (c *Client) SetLocalPDFLink(ctx context.Context, pageID, pdfPath string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			propPDFLink: notionapi.URLProperty{URL: "file://" + pdfPath},
		},
	})
	if err != nil {
		c.logger.Debug("failed to set local PDF link", "page_id", pageID, "error", err)
	}
	return nil
}

// AppendPDFReference appends a text block naming the notebook's PDF file.
func (c *Client) AppendPDFReference(ctx context.Context, pageID, pdfName string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := c.api.Block.AppendChildren(ctx, notionapi.BlockID(pageID), &notionapi.AppendBlockChildrenRequest{
		Children: []notionapi.Block{paragraphBlock("📎 PDF: " + pdfName)},
	})
	if err != nil {
		return fmt.Errorf("appending PDF reference: %w", c.handleError(err))
	}
	return nil
}

// handleError notices 429s so the limiter backs off before the next call.
func (c *Client) handleError(err error) error {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests {
		c.limiter.SetRetryAfter(time.Second)
		c.logger.Warn("rate limited by Notion API")
	}
	return err
}

// bodyBlocks builds the standard page body: a heading plus the extracted
// text truncated to Notion's block cap.
func bodyBlocks(text string) []notionapi.Block {
	return []notionapi.Block{
		&notionapi.Heading2Block{
			BasicBlock: notionapi.BasicBlock{
				Object: notionapi.ObjectTypeBlock,
				Type:   notionapi.BlockTypeHeading2,
			},
			Heading2: notionapi.Heading{
				RichText: richText(headingText),
			},
		},
		paragraphBlock(truncateText(text, maxTextBlockLength)),
	}
}

func paragraphBlock(text string) notionapi.Block {
	return &notionapi.ParagraphBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeParagraph,
		},
		Paragraph: notionapi.Paragraph{
			RichText: richText(text),
		},
	}
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{Text: &notionapi.Text{Content: content}},
	}
}

func tagOptions(tags []string) []notionapi.Option {
	options := make([]notionapi.Option, 0, len(tags))
	for _, tag := range tags {
		options = append(options, notionapi.Option{Name: tag})
	}
	return options
}

// truncateText cuts text to at most limit bytes. Anything beyond the cap
// is dropped rather than wrapped into further blocks.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}

// parseDate converts an RFC3339 string into a Notion date, reporting
// whether the input was present and parseable.
func parseDate(value string) (*notionapi.Date, bool) {
	if value == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, false
	}
	d := notionapi.Date(t)
	return &d, true
}
