package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/AI-Template-SDK/senso-sov/internal/models"
	"github.com/AI-Template-SDK/senso-sov/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	exactConfidence = 1.0
	aliasConfidence = 0.9
)

type mentionExtractor struct {
	repos *store.RepositoryManager

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func NewMentionExtractor(repos *store.RepositoryManager) MentionExtractor {
	return &mentionExtractor{repos: repos, patterns: make(map[string]*regexp.Regexp)}
}

// BuildCandidates returns the brand followed by its competitors. The brand
// is also searched under its domain, domain root and unspaced name;
// competitors under their unspaced name.
func BuildCandidates(brand *models.Brand, competitors []string) []Candidate {
	out := make([]Candidate, 0, len(competitors)+1)
	seen := make(map[string]struct{})
	add := func(name string, extra ...string) {
		name = strings.TrimSpace(name)
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, Candidate{Company: name, Aliases: aliasesFor(name, extra...)})
	}
	if brand != nil {
		add(brand.Name, NormalizeDomain(brand.Domain), DomainRoot(brand.Domain))
	}
	for _, c := range competitors {
		add(c)
	}
	return out
}

func aliasesFor(name string, extra ...string) []Alias {
	aliases := []Alias{{Text: name, Confidence: exactConfidence}}
	seen := map[string]struct{}{strings.ToLower(name): {}}
	push := func(text string) {
		text = strings.TrimSpace(text)
		key := strings.ToLower(text)
		if utf8.RuneCountInString(text) < 3 {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		aliases = append(aliases, Alias{Text: text, Confidence: aliasConfidence})
	}
	push(strings.ReplaceAll(name, " ", ""))
	for _, e := range extra {
		push(e)
	}
	return aliases
}

type aliasRef struct {
	company string
	alias   Alias
}

// FindMentions matches every alias case-insensitively on word boundaries.
// Longer aliases claim their spans first so a short name inside a longer
// one ("Acme" in "Acme Rival") is not counted twice. Each company yields
// at most one match regardless of how often it occurs.
func (s *mentionExtractor) FindMentions(text string, candidates []Candidate) []Match {
	if strings.TrimSpace(text) == "" || len(candidates) == 0 {
		return nil
	}

	refs := make([]aliasRef, 0, len(candidates)*2)
	for _, c := range candidates {
		for _, a := range c.Aliases {
			refs = append(refs, aliasRef{company: c.Company, alias: a})
		}
	}
	sort.SliceStable(refs, func(i, j int) bool {
		return utf8.RuneCountInString(refs[i].alias.Text) > utf8.RuneCountInString(refs[j].alias.Text)
	})

	var claimed [][2]int
	overlaps := func(start, end int) bool {
		for _, c := range claimed {
			if start < c[1] && c[0] < end {
				return true
			}
		}
		return false
	}

	found := make(map[string]*Match)
	for _, ref := range refs {
		re := s.pattern(ref.alias.Text)
		for _, loc := range overlappingMatches(re, text) {
			start, end := loc[0], loc[1]
			if !onWordBoundary(text, start, end) || overlaps(start, end) {
				continue
			}
			claimed = append(claimed, [2]int{start, end})
			m, ok := found[ref.company]
			if !ok {
				found[ref.company] = &Match{
					Company:     ref.company,
					MatchedText: text[start:end],
					Confidence:  ref.alias.Confidence,
					Offset:      start,
				}
				continue
			}
			if ref.alias.Confidence > m.Confidence {
				m.Confidence = ref.alias.Confidence
				m.MatchedText = text[start:end]
			}
			if start < m.Offset {
				m.Offset = start
			}
		}
	}

	// Candidate order keeps results stable.
	out := make([]Match, 0, len(found))
	for _, c := range candidates {
		if m, ok := found[c.Company]; ok {
			out = append(out, *m)
			delete(found, c.Company)
		}
	}
	return out
}

// overlappingMatches returns every match of re in text, restarting one rune
// after each match start so an occurrence hidden inside a rejected one is
// still tried.
func overlappingMatches(re *regexp.Regexp, text string) [][2]int {
	var out [][2]int
	for pos := 0; pos < len(text); {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil || loc[1] == loc[0] {
			break
		}
		start := pos + loc[0]
		out = append(out, [2]int{start, pos + loc[1]})
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + size
	}
	return out
}

// ExtractMentions recomputes the stored mentions of one response from its
// text. Running it again with the same candidates yields the same rows.
func (s *mentionExtractor) ExtractMentions(ctx context.Context, response *models.AIResponse, candidates []Candidate) ([]*models.Mention, error) {
	if response == nil {
		return nil, fmt.Errorf("failed to extract mentions: nil response")
	}
	matches := s.FindMentions(response.Text, candidates)

	if _, err := s.repos.MentionRepo.DeleteByResponse(ctx, response.ID); err != nil {
		return nil, fmt.Errorf("failed to clear mentions for response %s: %w", response.ID, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	mentions := make([]*models.Mention, 0, len(matches))
	for _, m := range matches {
		mentions = append(mentions, &models.Mention{
			PromptID:    response.PromptID,
			ResponseID:  response.ID,
			CategoryID:  response.CategoryID,
			BrandID:     response.BrandID,
			CompanyName: m.Company,
			MatchedText: m.MatchedText,
			Confidence:  m.Confidence,
			SessionID:   response.SessionID,
		})
	}
	if err := s.repos.MentionRepo.CreateMany(ctx, mentions); err != nil {
		return nil, fmt.Errorf("failed to store mentions for response %s: %w", response.ID, err)
	}
	log.Debug().
		Str("session_id", response.SessionID).
		Str("response_id", response.ID.String()).
		Int("mentions", len(mentions)).
		Msg("[ExtractMentions] Mentions stored")
	return mentions, nil
}

func (s *mentionExtractor) pattern(alias string) *regexp.Regexp {
	key := strings.ToLower(alias)
	s.mu.Lock()
	defer s.mu.Unlock()
	if re, ok := s.patterns[key]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(alias))
	s.patterns[key] = re
	return re
}

// onWordBoundary reports whether text[start:end] is not glued to a letter
// or digit on either side.
func onWordBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
