// Package router decides which platform notifications should start a pipeline run.
package router

import (
	"fmt"
	"strings"

	"github.com/iago/career-agent/internal/classify"
	"github.com/iago/career-agent/internal/domain"
)

var (
	DefaultProfessionalPackages = []string{"com.linkedin.android"}
	DefaultEmailPackages        = []string{"com.google.android.gm"}
	DefaultMessagingPackages    = []string{"com.whatsapp", "com.whatsapp.w4b"}
)

const (
	acceptanceWindow = "newer_than:1d"
	emailWindow      = "newer_than:1h"
)

// Config lists package ids on top of the defaults.
type Config struct {
	ProfessionalPackages []string
	EmailPackages        []string
	MessagingPackages    []string
}

type Router struct {
	sources map[string]domain.SourceApp
}

func New(cfg Config) *Router {
	sources := make(map[string]domain.SourceApp)
	register := func(packages []string, source domain.SourceApp) {
		for _, pkg := range packages {
			if pkg = strings.TrimSpace(pkg); pkg != "" {
				sources[pkg] = source
			}
		}
	}
	register(DefaultMessagingPackages, domain.SourceMessaging)
	register(cfg.MessagingPackages, domain.SourceMessaging)
	register(DefaultEmailPackages, domain.SourceEmail)
	register(cfg.EmailPackages, domain.SourceEmail)
	register(DefaultProfessionalPackages, domain.SourceProfessional)
	register(cfg.ProfessionalPackages, domain.SourceProfessional)
	return &Router{sources: sources}
}

// SourceOf classifies a package id.
func (r *Router) SourceOf(packageID string) domain.SourceApp {
	if source, ok := r.sources[strings.TrimSpace(packageID)]; ok {
		return source
	}
	return domain.SourceUnknown
}

// Route maps a notification to a decision. It has no side effects.
func (r *Router) Route(signal domain.InboundSignal) domain.Decision {
	source := r.SourceOf(signal.PackageID)
	switch source {
	case domain.SourceProfessional:
		return routeProfessional(signal)
	case domain.SourceEmail:
		return routeEmail(signal)
	default:
		return domain.Decision{SourceHint: source}
	}
}

func routeProfessional(signal domain.InboundSignal) domain.Decision {
	decision := domain.Decision{SourceHint: domain.SourceProfessional}
	if !classify.IsAcceptance(signal.Text) && !classify.IsAcceptance(signal.Title) {
		return decision
	}

	name := sanitizeQueryTerm(classify.AcceptedPersonName(signal.Title, signal.Text))
	if name == "" {
		return decision
	}
	decision.Trigger = true
	decision.SearchKey = name
	decision.Query = fmt.Sprintf("%q %q %s", name, "accepted your invitation", acceptanceWindow)
	return decision
}

func routeEmail(signal domain.InboundSignal) domain.Decision {
	key := strings.TrimSpace(signal.Title)
	if key == "" {
		key = strings.TrimSpace(signal.Text)
	}
	key = sanitizeQueryTerm(key)

	decision := domain.Decision{
		Trigger:    true,
		SearchKey:  key,
		SourceHint: domain.SourceEmail,
		Query:      emailWindow,
	}
	if key != "" {
		decision.Query = fmt.Sprintf("%q %s", key, emailWindow)
	}
	return decision
}

// sanitizeQueryTerm drops double quotes and backslashes so the term can be
// quoted inside a mailbox search.
func sanitizeQueryTerm(term string) string {
	term = strings.NewReplacer(`"`, "", `\`, "").Replace(term)
	return strings.Join(strings.Fields(term), " ")
}
