package service

import (
	"strings"
	"sync"

	"gowa-trello/internal/model"
)

// FilterStore holds the process-wide reconciliation policy: which messages
// are worth a Trello lookup. Changes apply only to events observed after
// the change.
type FilterStore struct {
	mu         sync.RWMutex
	keywords   []string
	mediaTypes []string
}

// NewFilterStore seeds the store, normalizing both lists.
func NewFilterStore(keywords, mediaTypes []string) *FilterStore {
	return &FilterStore{
		keywords:   normalize(keywords),
		mediaTypes: normalize(mediaTypes),
	}
}

// Get returns copies of the current keyword and media-type sets.
func (f *FilterStore) Get() (keywords, mediaTypes []string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string{}, f.keywords...), append([]string{}, f.mediaTypes...)
}

// Set replaces whichever list is non-nil (lowercased, trimmed) and returns
// the effective configuration.
func (f *FilterStore) Set(keywords, mediaTypes []string) (effKeywords, effMediaTypes []string) {
	f.mu.Lock()
	if keywords != nil {
		f.keywords = normalize(keywords)
	}
	if mediaTypes != nil {
		f.mediaTypes = normalize(mediaTypes)
	}
	f.mu.Unlock()
	return f.Get()
}

// Eligible decides whether a classified message should reach the
// confirmation engine. "other" media never passes: it carries no usable
// text. Empty config passes everything; otherwise keyword substring OR
// media-type membership is enough.
func (f *FilterStore) Eligible(content, mediaType string) bool {
	if mediaType == model.MediaOther {
		return false
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.keywords) == 0 && len(f.mediaTypes) == 0 {
		return true
	}

	lower := strings.ToLower(content)
	for _, keyword := range f.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	for _, mt := range f.mediaTypes {
		if mt == mediaType {
			return true
		}
	}
	return false
}

func normalize(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
