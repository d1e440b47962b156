// Package catalog loads the activity catalog: from the CRM when reachable,
// then from an ordered list of fallback content sources, and finally from an
// embedded default dataset.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/models"
	"github.com/4sighteducation/vespa-activities-api/internal/observability"
	"github.com/4sighteducation/vespa-activities-api/internal/recon"
)

const cacheKey = "catalog:activities"

// Lister is the subset of the Knack client the catalog needs.
type Lister interface {
	GetAllRecords(ctx context.Context, object string, q knack.Query) ([]knack.Record, error)
}

// Config carries catalog loading options.
type Config struct {
	Sources       []string
	SourceTimeout time.Duration
	CacheTTL      time.Duration
}

// Service loads and caches the activity catalog.
type Service struct {
	client  Lister
	http    *http.Client
	cache   *redis.Client
	sources []string
	timeout time.Duration
	ttl     time.Duration
	logger  zerolog.Logger
}

// NewService builds a catalog service.
func NewService(client Lister, cache *redis.Client, cfg Config, logger zerolog.Logger) *Service {
	timeout := cfg.SourceTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &Service{
		client:  client,
		http:    &http.Client{},
		cache:   cache,
		sources: cfg.Sources,
		timeout: timeout,
		ttl:     ttl,
		logger:  logger.With().Str("component", "catalog_service").Logger(),
	}
}

// Load returns the full activity catalog. The CRM is authoritative; on
// failure each fallback content source is tried in order with a uniform
// timeout, and the embedded dataset is the terminal state, so the catalog is
// never empty.
func (s *Service) Load(ctx context.Context) ([]models.Activity, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var activities []models.Activity
			if unmarshalErr := json.Unmarshal([]byte(cached), &activities); unmarshalErr == nil {
				s.logger.Debug().Int("count", len(activities)).Msg("catalog cache hit")
				return activities, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read catalog cache")
		}
	}

	activities, err := s.loadFromCRM(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog unavailable from CRM, trying fallback sources")
		activities = s.loadFromFallbacks(ctx)
	}

	if s.cache != nil && len(activities) > 0 {
		payload, marshalErr := json.Marshal(activities)
		if marshalErr == nil {
			if setErr := s.cache.Set(ctx, cacheKey, payload, s.ttl).Err(); setErr != nil {
				s.logger.Warn().Err(setErr).Msg("failed to store catalog cache")
			}
		}
	}

	return activities, nil
}

// Invalidate drops the cached catalog.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate catalog cache")
	}
}

func (s *Service) loadFromCRM(ctx context.Context) ([]models.Activity, error) {
	records, err := s.client.GetAllRecords(ctx, knack.ObjectActivities, knack.Query{})
	if err != nil {
		return nil, err
	}

	activities := make([]models.Activity, 0, len(records))
	for _, record := range records {
		if activity, ok := ParseActivityRecord(record); ok {
			activities = append(activities, activity)
		}
	}

	if len(activities) == 0 {
		return nil, fmt.Errorf("catalog listing returned no usable activities")
	}

	return activities, nil
}

func (s *Service) loadFromFallbacks(ctx context.Context) []models.Activity {
	for _, source := range s.sources {
		activities, err := s.fetchSource(ctx, source)
		if err != nil {
			s.logger.Warn().Err(err).Str("source", source).Msg("fallback content source failed")
			continue
		}

		observability.CatalogFallbacks().WithLabelValues(source).Inc()
		s.logger.Info().Str("source", source).Int("count", len(activities)).Msg("catalog loaded from fallback source")
		return activities
	}

	observability.CatalogFallbacks().WithLabelValues("embedded").Inc()
	s.logger.Warn().Msg("all content sources exhausted, using embedded catalog")
	return EmbeddedActivities()
}

func (s *Service) fetchSource(ctx context.Context, source string) ([]models.Activity, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch content source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read content source: %w", err)
	}

	return ParseFallbackDocument(body)
}

// ParseFallbackDocument validates and parses a hosted activity document.
func ParseFallbackDocument(data []byte) ([]models.Activity, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode content document: %w", err)
	}

	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("content document failed schema validation: %w", err)
	}

	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("content document is not an array")
	}

	activities := make([]models.Activity, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		category, ok := models.ParseCategory(stringValue(entry["VESPA Category"]))
		if !ok {
			continue
		}

		name := recon.StripHTML(stringValue(entry["Activities Name"]))
		if name == "" {
			continue
		}

		id := stringValue(entry["Activity_id"])
		if id == "" {
			id = recon.NormalizeName(name)
		}

		activities = append(activities, models.Activity{
			ID:          id,
			Name:        name,
			Category:    category,
			Level:       parseLevel(entry["Level"]),
			Description: recon.StripHTML(stringValue(entry["background_content"])),
		})
	}

	if len(activities) == 0 {
		return nil, fmt.Errorf("content document contained no usable activities")
	}

	return activities, nil
}

// ParseActivityRecord normalizes one raw catalog record from the CRM.
func ParseActivityRecord(record map[string]any) (models.Activity, bool) {
	id := knack.Record(record).ID()
	name := recon.StripHTML(recon.ResolveString(record, knack.FieldActivityName, ""))
	if id == "" || name == "" {
		return models.Activity{}, false
	}

	category, ok := models.ParseCategory(recon.StripHTML(recon.ResolveString(record, knack.FieldActivityCategory, "")))
	if !ok {
		return models.Activity{}, false
	}

	// The alt level field supersedes the legacy one where populated.
	level := int(recon.ResolveFloat(record, knack.FieldActivityLevelAlt, 0))
	if level == 0 {
		level = int(recon.ResolveFloat(record, knack.FieldActivityLevel, 1))
	}
	if level <= 0 {
		level = 1
	}

	duration := recon.StripHTML(recon.ResolveString(record, knack.FieldActivityDuration, ""))
	if duration == "" {
		duration = "N/A"
	}

	activityType := recon.StripHTML(recon.ResolveString(record, knack.FieldActivityType, ""))
	if activityType == "" {
		activityType = "Activity"
	}

	return models.Activity{
		ID:                  id,
		Name:                name,
		Category:            category,
		Level:               level,
		Description:         recon.StripHTML(recon.ResolveString(record, knack.FieldActivityDescription, "")),
		Duration:            duration,
		Type:                activityType,
		Curriculums:         parseCurriculums(recon.ResolveField(record, knack.FieldActivityCurriculum, nil)),
		ScoreShowIfMoreThan: recon.ResolveFloat(record, knack.FieldActivityScoreMoreThan, 0),
		ScoreShowIfLessEq:   recon.ResolveFloat(record, knack.FieldActivityScoreLessEq, 0),
	}, true
}

// parseCurriculums accepts the CSV, array and object shapes the multi-select
// field has been observed to take.
func parseCurriculums(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		var tags []string
		for _, part := range strings.Split(v, ",") {
			if tag := strings.TrimSpace(part); tag != "" {
				tags = append(tags, tag)
			}
		}
		return tags
	case []any:
		var tags []string
		for _, item := range v {
			if tag := strings.TrimSpace(recon.DisplayString(item)); tag != "" {
				tags = append(tags, tag)
			}
		}
		return tags
	case map[string]any:
		if tag := strings.TrimSpace(recon.DisplayString(v)); tag != "" {
			return []string{tag}
		}
		return nil
	default:
		return nil
	}
}

func parseLevel(value any) int {
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case string:
		trimmed := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(v), "Level"))
		if parsed, err := strconv.Atoi(strings.TrimSpace(trimmed)); err == nil && parsed > 0 {
			return parsed
		}
	}

	return 1
}

func stringValue(value any) string {
	s, _ := value.(string)
	return s
}
