package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"mvdan.cc/xurls/v2"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".svg", ".webp"}

type citationExtractor struct {
	repos *store.RepositoryManager
}

func NewCitationExtractor(repos *store.RepositoryManager) CitationExtractor {
	return &citationExtractor{repos: repos}
}

// FindCitations returns the cleaned http(s) URLs in text in order of first
// appearance. Only URLs with a scheme count; image links are skipped.
func (s *citationExtractor) FindCitations(text, brandDomain string) []CitationMatch {
	brandDomain = NormalizeDomain(brandDomain)
	seen := make(map[string]struct{})
	var out []CitationMatch
	for _, raw := range xurls.Strict().FindAllString(text, -1) {
		cleaned, host, ok := cleanCitationURL(raw)
		if !ok {
			continue
		}
		if _, dup := seen[cleaned]; dup {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, CitationMatch{
			URL:     cleaned,
			Domain:  host,
			Primary: brandDomain != "" && (host == brandDomain || strings.HasSuffix(host, "."+brandDomain)),
		})
	}
	return out
}

// ExtractCitations replaces the stored citations of response.
func (s *citationExtractor) ExtractCitations(ctx context.Context, response *models.AIResponse, brandDomain string) ([]*models.Citation, error) {
	if response == nil {
		return nil, fmt.Errorf("failed to extract citations: nil response")
	}
	matches := s.FindCitations(response.Text, brandDomain)

	if _, err := s.repos.CitationRepo.DeleteByResponse(ctx, response.ID); err != nil {
		return nil, fmt.Errorf("failed to clear citations for response %s: %w", response.ID, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	citations := make([]*models.Citation, 0, len(matches))
	for _, m := range matches {
		citations = append(citations, &models.Citation{
			PromptID:   response.PromptID,
			ResponseID: response.ID,
			BrandID:    response.BrandID,
			URL:        m.URL,
			Domain:     m.Domain,
			Primary:    m.Primary,
			SessionID:  response.SessionID,
		})
	}
	if err := s.repos.CitationRepo.CreateMany(ctx, citations); err != nil {
		return nil, fmt.Errorf("failed to store citations for response %s: %w", response.ID, err)
	}
	log.Debug().
		Str("response_id", response.ID.String()).
		Int("citations", len(citations)).
		Msg("[ExtractCitations] Citations stored")
	return citations, nil
}

// cleanCitationURL drops "www.", utm_* parameters and trailing slashes.
func cleanCitationURL(raw string) (cleaned, host string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", false
	}
	host = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return "", "", false
	}
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	q := u.Query()
	for param := range q {
		if strings.HasPrefix(strings.ToLower(param), "utm_") {
			q.Del(param)
		}
	}
	u.RawQuery = q.Encode()

	path := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return "", "", false
		}
	}
	return u.String(), host, true
}
