package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// NotionService defines the subset of the Notion API used by NotionSource.
// This interface enables mocking and testing of Notion operations.
type NotionService interface {
	// QueryDatabase queries a Notion database with the given request.
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// NotionClient is the concrete implementation of NotionService using the Notion SDK.
type NotionClient struct {
	client *notionapi.Client
}

// NewNotionClient creates a new NotionClient with the provided API token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

// QueryDatabase queries a Notion database with the given request.
func (n *NotionClient) QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, fmt.Errorf("QueryDatabase: %w", err)
	}
	return resp, nil
}

const notionPageSize = 100

// NotionSource reads the ledger from a Notion database, one page per entry.
type NotionSource struct {
	service    NotionService
	databaseID string
}

// NewNotionSource creates a NotionSource for the given database.
func NewNotionSource(service NotionService, databaseID string) *NotionSource {
	return &NotionSource{service: service, databaseID: databaseID}
}

// ReadEntries implements Reader. It follows the query cursor until the
// database is exhausted.
func (s *NotionSource) ReadEntries(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	var cursor notionapi.Cursor

	for {
		resp, err := s.service.QueryDatabase(ctx, s.databaseID, &notionapi.DatabaseQueryRequest{
			StartCursor: cursor,
			PageSize:    notionPageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("NotionSource.ReadEntries: %w", err)
		}

		for _, page := range resp.Results {
			if e, ok := FromRaw(rawFromPage(page)); ok {
				entries = append(entries, e)
			}
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}

	return entries, nil
}

func rawFromPage(page notionapi.Page) RawRow {
	raw := RawRow{ID: page.ID.String()}
	for name, prop := range page.Properties {
		c := lookupColumn(name)
		if c == colUnknown {
			continue
		}
		raw.set(c, propertyText(prop))
	}
	return raw
}

// propertyText flattens a page property into the text a spreadsheet cell
// would hold. Dates come out as YYYY-MM-DD.
func propertyText(prop notionapi.Property) string {
	switch p := prop.(type) {
	case *notionapi.TitleProperty:
		return richTextString(p.Title)
	case *notionapi.RichTextProperty:
		return richTextString(p.RichText)
	case *notionapi.SelectProperty:
		return p.Select.Name
	case *notionapi.StatusProperty:
		return p.Status.Name
	case *notionapi.PhoneNumberProperty:
		return p.PhoneNumber
	case *notionapi.NumberProperty:
		return strconv.FormatFloat(p.Number, 'f', -1, 64)
	case *notionapi.DateProperty:
		if p.Date == nil || p.Date.Start == nil {
			return ""
		}
		return time.Time(*p.Date.Start).Format(time.DateOnly)
	default:
		return ""
	}
}

func richTextString(parts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		if rt.PlainText != "" {
			b.WriteString(rt.PlainText)
		} else if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
