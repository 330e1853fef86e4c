package records

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gnt "github.com/dstotijn/go-notion"

	"github.com/iago/career-agent/internal/domain"
)

// StatusKind is the Notion property type backing the Status column.
type StatusKind string

const (
	StatusKindStatus StatusKind = "status"
	StatusKindSelect StatusKind = "select"
)

const (
	propCompany     = "Company"
	propTitle       = "Title"
	propStatus      = "Status"
	propDateApplied = "Date Applied"
)

type NotionConfig struct {
	Token      string
	DatabaseID string
	StatusKind StatusKind
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NotionStore keeps the tracker in a Notion database whose title property is "Company".
type NotionStore struct {
	api        *gnt.Client
	databaseID string
	statusKind StatusKind
	timeout    time.Duration
}

func NewNotionStore(cfg NotionConfig) (*NotionStore, error) {
	if strings.TrimSpace(cfg.Token) == "" || strings.TrimSpace(cfg.DatabaseID) == "" {
		return nil, fmt.Errorf("notion: token and database id are required")
	}
	if cfg.StatusKind != StatusKindSelect {
		cfg.StatusKind = StatusKindStatus
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	var opts []gnt.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, gnt.WithHTTPClient(cfg.HTTPClient))
	}
	return &NotionStore{
		api:        gnt.NewClient(cfg.Token, opts...),
		databaseID: cfg.DatabaseID,
		statusKind: cfg.StatusKind,
		timeout:    cfg.Timeout,
	}, nil
}

func (s *NotionStore) FindMatch(ctx context.Context, companyOrHeadline string) (domain.RecordMatch, error) {
	keywords := SplitKeywords(companyOrHeadline)
	if len(keywords) == 0 {
		return domain.RecordMatch{}, nil
	}

	or := make([]gnt.DatabaseQueryFilter, 0, len(keywords))
	for _, keyword := range keywords {
		or = append(or, gnt.DatabaseQueryFilter{
			Property: propCompany,
			DatabaseQueryPropertyFilter: gnt.DatabaseQueryPropertyFilter{
				Title: &gnt.TextPropertyFilter{Contains: keyword},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.api.QueryDatabase(ctx, s.databaseID, &gnt.DatabaseQuery{
		Filter: &gnt.DatabaseQueryFilter{Or: or},
	})
	if err != nil {
		return domain.RecordMatch{}, fmt.Errorf("notion: query database: %w", err)
	}
	if len(resp.Results) == 0 {
		return domain.RecordMatch{}, nil
	}

	first := resp.Results[0]
	return domain.NewRecordMatch(first.ID, companyTitle(first)), nil
}

func (s *NotionStore) UpdateStatus(ctx context.Context, recordID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.api.UpdatePage(ctx, recordID, gnt.UpdatePageParams{
		DatabasePageProperties: gnt.DatabasePageProperties{
			propStatus: s.statusProperty(status),
		},
	})
	if err != nil {
		return fmt.Errorf("notion: update status of %s: %w", recordID, err)
	}
	return nil
}

func (s *NotionStore) CreateRecord(ctx context.Context, company, title string, appliedDate time.Time) error {
	props := gnt.DatabasePageProperties{
		propCompany: gnt.DatabasePageProperty{Title: richText(company)},
		propTitle:   gnt.DatabasePageProperty{RichText: richText(title)},
		propStatus:  s.statusProperty(StatusApplied),
		propDateApplied: gnt.DatabasePageProperty{
			Date: &gnt.Date{Start: gnt.NewDateTime(appliedDate, false)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.api.CreatePage(ctx, gnt.CreatePageParams{
		ParentType:             gnt.ParentTypeDatabase,
		ParentID:               s.databaseID,
		DatabasePageProperties: &props,
	})
	if err != nil {
		return fmt.Errorf("notion: create record for %q: %w", company, err)
	}
	return nil
}

func (s *NotionStore) statusProperty(status string) gnt.DatabasePageProperty {
	option := &gnt.SelectOptions{Name: status}
	if s.statusKind == StatusKindSelect {
		return gnt.DatabasePageProperty{Select: option}
	}
	return gnt.DatabasePageProperty{Status: option}
}

func companyTitle(page gnt.Page) string {
	props, ok := page.Properties.(gnt.DatabasePageProperties)
	if !ok {
		return ""
	}
	prop, ok := props[propCompany]
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, fragment := range prop.Title {
		if fragment.PlainText != "" {
			sb.WriteString(fragment.PlainText)
		} else if fragment.Text != nil {
			sb.WriteString(fragment.Text.Content)
		}
	}
	return strings.TrimSpace(sb.String())
}

func richText(s string) []gnt.RichText {
	if s == "" {
		return []gnt.RichText{}
	}
	return []gnt.RichText{{Text: &gnt.Text{Content: s}}}
}
