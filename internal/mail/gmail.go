package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type GmailConfig struct {
	// CredentialsPath is the OAuth client secret downloaded from the Cloud console.
	CredentialsPath string
	// TokenPath holds a previously authorized user token. Consent flows are out of scope.
	TokenPath string
	User      string
	Timeout   time.Duration

	// Endpoint and HTTPClient bypass OAuth entirely, mainly for tests.
	Endpoint   string
	HTTPClient *http.Client
}

// GmailFetcher reads messages from a Gmail mailbox with read-only scope.
type GmailFetcher struct {
	service *gmail.Service
	user    string
	timeout time.Duration
}

func NewGmailFetcher(ctx context.Context, cfg GmailConfig) (*GmailFetcher, error) {
	if strings.TrimSpace(cfg.User) == "" {
		cfg.User = "me"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.CredentialsPath != "":
		client, err := userClient(ctx, cfg.CredentialsPath, cfg.TokenPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithHTTPClient(client))
	default:
		return nil, errors.New("gmail: credentials path is required")
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}
	return &GmailFetcher{service: service, user: cfg.User, timeout: cfg.Timeout}, nil
}

func userClient(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	secret, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("gmail: read credentials: %w", err)
	}
	config, err := google.ConfigFromJSON(secret, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("gmail: parse credentials: %w", err)
	}

	if strings.TrimSpace(tokenPath) == "" {
		return nil, errors.New("gmail: token path is required")
	}
	raw, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("gmail: read token: %w", err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("gmail: parse token: %w", err)
	}
	return config.Client(ctx, &token), nil
}

func (f *GmailFetcher) GetMetadata(ctx context.Context, id string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	msg, err := f.service.Users.Messages.Get(f.user, id).
		Format("metadata").
		MetadataHeaders("Subject", "From").
		Context(ctx).
		Do()
	if err != nil {
		return Metadata{}, wrapGmailError("get metadata", id, err)
	}
	return metadataOf(msg), nil
}

func (f *GmailFetcher) GetFull(ctx context.Context, id string) (FullMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	msg, err := f.service.Users.Messages.Get(f.user, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return FullMessage{}, wrapGmailError("get message", id, err)
	}

	htmlBody, plainBody := collectBodies(msg.Payload)
	return FullMessage{
		Metadata:  metadataOf(msg),
		Snippet:   msg.Snippet,
		HTMLBody:  htmlBody,
		PlainBody: plainBody,
	}, nil
}

func (f *GmailFetcher) Search(ctx context.Context, query string, maxResults int64) ([]string, error) {
	if maxResults <= 0 {
		maxResults = 1
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := f.service.Users.Messages.List(f.user).
		Q(query).
		MaxResults(maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail: search %q: %w", query, err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m != nil && m.Id != "" {
			ids = append(ids, m.Id)
		}
	}
	return ids, nil
}

func metadataOf(msg *gmail.Message) Metadata {
	meta := Metadata{ID: msg.Id}
	if msg.InternalDate > 0 {
		meta.InternalDate = time.UnixMilli(msg.InternalDate)
	}
	meta.Subject = header(msg.Payload, "Subject")
	meta.From = header(msg.Payload, "From")
	return meta
}

func wrapGmailError(op, id string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("gmail: %s %s: %w", op, id, ErrMessageNotFound)
	}
	return fmt.Errorf("gmail: %s %s: %w", op, id, err)
}
