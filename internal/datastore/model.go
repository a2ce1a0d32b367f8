package datastore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/questioncrawler/wikidata-cache/internal/category"
)

// Entry is one cached trivia fact. Entries are immutable once inserted.
type Entry struct {
	ID       string            `gorm:"primaryKey;size:36"`
	Category category.Category `gorm:"size:32;not null;uniqueIndex:idx_entries_dedupe,priority:1;index:idx_entries_recent,priority:1"`
	// Fields holds the category-specific labels, e.g. countryLabel and capitalLabel.
	Fields   map[string]string `gorm:"serializer:json;type:text"`
	ImageURL string            `gorm:"size:1024"`
	// RawData is the upstream record exactly as received.
	RawData   datatypes.JSON
	DedupeKey string    `gorm:"size:64;not null;uniqueIndex:idx_entries_dedupe,priority:2"`
	CreatedAt time.Time `gorm:"not null;index:idx_entries_recent,priority:2,sort:desc"`
}

// TableName keeps the table name stable regardless of naming strategy.
func (Entry) TableName() string {
	return "entries"
}

// BeforeCreate fills the generated columns.
func (e *Entry) BeforeCreate(_ *gorm.DB) error {
	e.prepare()
	return nil
}

// prepare assigns ID, dedupe key and timestamp when missing. Every backend calls it.
func (e *Entry) prepare() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.DedupeKey == "" {
		e.DedupeKey = DedupeKey(e.Category, e.Fields)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}

// MarshalJSON renders the entry flat, with label fields at the top level:
//
//	{"id":"…","category":"paises","countryLabel":"Perú","capitalLabel":"Lima",
//	 "imageUrl":"…","rawData":{…},"createdAt":"…"}
func (e Entry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+5)
	for k, v := range e.Fields {
		out[k] = v
	}
	out["id"] = e.ID
	out["category"] = e.Category
	if e.ImageURL != "" {
		out["imageUrl"] = e.ImageURL
	}
	if len(e.RawData) > 0 {
		out["rawData"] = json.RawMessage(e.RawData)
	}
	out["createdAt"] = e.CreatedAt
	return json.Marshal(out)
}

// Raw decodes RawData into a flat record.
func (e *Entry) Raw() map[string]string {
	if len(e.RawData) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(e.RawData, &m); err != nil {
		return nil
	}
	return m
}

// NewEntry builds an entry from projected fields and the raw upstream record.
func NewEntry(c category.Category, fields, raw map[string]string, imageURL string) (*Entry, error) {
	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Category: c,
		Fields:   maps.Clone(fields),
		ImageURL: imageURL,
		RawData:  datatypes.JSON(rawJSON),
	}, nil
}

// DedupeKey derives the uniqueness key of an entry from its category fields.
// Values are NFKC normalised and case folded so that upstream repeats that
// differ only in form or case collide.
func DedupeKey(c category.Category, fields map[string]string) string {
	var parts []string
	if def, ok := category.Lookup(c); ok {
		for _, f := range def.Fields {
			parts = append(parts, normalise(fields[f]))
		}
	} else {
		for _, k := range sortedKeys(fields) {
			parts = append(parts, k+"="+normalise(fields[k]))
		}
	}

	sum := sha256.Sum256([]byte(string(c) + "\x1f" + strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func normalise(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
