package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/AI-Template-SDK/senso-sov/internal/config"
	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/providers"
	"github.com/rs/zerolog/log"
)

// Stage names used in failure logs and metrics.
const (
	stageProfile     = "profile"
	stageCategories  = "categories"
	stageCompetitors = "competitors"
	stagePrompts     = "prompts"
	stageResponses   = "responses"
	stageMentions    = "mentions"
	stageSOV         = "sov"
	stageSync        = "sync"
	stageIndex       = "index"
)

var (
	overviewPattern    = regexp.MustCompile(`(?is)OVERVIEW:\s*(.*?)\s*(?:DESCRIPTION:|$)`)
	descriptionPattern = regexp.MustCompile(`(?is)DESCRIPTION:\s*(.*)$`)
)

type domainProfiler struct {
	cfg   *config.Config
	model providers.ModelService
}

func NewDomainProfiler(cfg *config.Config, model providers.ModelService) DomainProfiler {
	return &domainProfiler{cfg: cfg, model: model}
}

func (s *domainProfiler) ProfileDomain(ctx context.Context, domain string) (*ProfileResult, error) {
	domain = NormalizeDomain(domain)
	log.Info().Str("domain", domain).Msg("[ProfileDomain] Profiling domain")

	result := &ProfileResult{}
	reply, err := complete(ctx, s.model, &providers.ChatRequest{
		Model: s.cfg.Models.Profile,
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "You are a market analyst who writes concise, factual business profiles."},
			{Role: providers.RoleUser, Content: buildProfilePrompt(domain)},
		},
		Temperature: 0.3,
		MaxTokens:   800,
	}, &result.Usage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn().Err(err).Str("domain", domain).Msg("[ProfileDomain] Model call failed, using templated profile")
		result.fail(ctx, stageProfile, models.FailureUpstreamUnavailable, domain, err.Error())
		result.ProfileText, result.Description = fallbackProfile(domain)
		result.Fallback = true
		return result, nil
	}

	profile, description := parseProfile(reply)
	if profile == "" {
		result.fail(ctx, stageProfile, models.FailureMalformedReply, domain, "empty profile reply")
		result.ProfileText, result.Description = fallbackProfile(domain)
		result.Fallback = true
		return result, nil
	}
	result.ProfileText = profile
	result.Description = description
	return result, nil
}

func buildProfilePrompt(domain string) string {
	return fmt.Sprintf(`Analyze the business behind the website %s.

Respond with exactly two labeled sections:
OVERVIEW: a paragraph describing what the business sells, who its customers are and how it competes.
DESCRIPTION: one sentence of at most 20 words summarizing the business.`, domain)
}

// parseProfile splits a reply on its OVERVIEW and DESCRIPTION labels. A
// reply without labels is used for both fields.
func parseProfile(reply string) (profile, description string) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", ""
	}
	if m := overviewPattern.FindStringSubmatch(reply); m != nil {
		profile = strings.TrimSpace(m[1])
	}
	if m := descriptionPattern.FindStringSubmatch(reply); m != nil {
		description = strings.TrimSpace(m[1])
	}
	switch {
	case profile == "" && description == "":
		return reply, reply
	case profile == "":
		return description, description
	case description == "":
		return profile, profile
	}
	return profile, description
}

func fallbackProfile(domain string) (profile, description string) {
	name := BrandNameFromDomain(domain)
	profile = fmt.Sprintf("%s operates the website %s and offers products and services to its customers online.", name, domain)
	description = fmt.Sprintf("%s, the business behind %s.", name, domain)
	return profile, description
}

// NormalizeDomain lowercases a domain and strips scheme, "www." and path.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// DomainRoot returns the registrable label of a domain: "acme-widgets" for
// "shop.acme-widgets.com".
func DomainRoot(domain string) string {
	labels := strings.Split(NormalizeDomain(domain), ".")
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	}
	return labels[len(labels)-2]
}

// BrandNameFromDomain derives a display name: "acme-widgets.com" becomes
// "Acme Widgets".
func BrandNameFromDomain(domain string) string {
	root := DomainRoot(domain)
	words := strings.FieldsFunc(root, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	if len(words) == 0 {
		return domain
	}
	return strings.Join(words, " ")
}
