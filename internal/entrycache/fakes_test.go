package entrycache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/questioncrawler/wikidata-cache/internal/category"
	"github.com/questioncrawler/wikidata-cache/internal/datastore"
	"github.com/questioncrawler/wikidata-cache/internal/wikidata"
)

// memStore is an in-memory Store with the same duplicate semantics as the
// real backends.
type memStore struct {
	mu        sync.Mutex
	entries   map[category.Category][]datastore.Entry
	keys      map[string]bool
	clock     time.Time
	countErr  error
	insertErr error
	panicOn   string
	inserts   int
}

func newMemStore() *memStore {
	return &memStore{
		entries: map[category.Category][]datastore.Entry{},
		keys:    map[string]bool{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) maybePanic(op string) {
	if m.panicOn == op {
		panic("boom in " + op)
	}
}

func (m *memStore) Count(_ context.Context, c category.Category) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maybePanic("count")
	if m.countErr != nil {
		return 0, m.countErr
	}
	return int64(len(m.entries[c])), nil
}

func (m *memStore) CountAll(_ context.Context) (map[category.Category]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[category.Category]int64{}
	for c, list := range m.entries {
		out[c] = int64(len(list))
	}
	return out, nil
}

func (m *memStore) SampleRandom(_ context.Context, c category.Category, n int) ([]datastore.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := slices.Clone(m.entries[c])
	rand.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	return list[:min(n, len(list))], nil
}

func (m *memStore) FindRecent(_ context.Context, c category.Category, n int) ([]datastore.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := slices.Clone(m.entries[c])
	slices.Reverse(list)
	return list[:min(n, len(list))], nil
}

func (m *memStore) FindOneRandomOffset(_ context.Context, c category.Category) (*datastore.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[c]
	if len(list) == 0 {
		return nil, nil
	}
	e := list[rand.IntN(len(list))]
	return &e, nil
}

func (m *memStore) Insert(_ context.Context, e *datastore.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("id-%d", m.inserts)
	}
	if e.DedupeKey == "" {
		e.DedupeKey = datastore.DedupeKey(e.Category, e.Fields)
	}
	key := string(e.Category) + "/" + e.DedupeKey
	if m.keys[key] {
		return fmt.Errorf("%w: %s", datastore.ErrDuplicateKey, key)
	}
	m.keys[key] = true
	m.clock = m.clock.Add(time.Second)
	e.CreatedAt = m.clock
	m.entries[e.Category] = append(m.entries[e.Category], *e)
	return nil
}

func (m *memStore) count(c category.Category) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries[c])
}

// seed stores n distinct entries of c directly.
func (m *memStore) seed(c category.Category, n int) []datastore.Entry {
	def, _ := category.Lookup(c)
	out := make([]datastore.Entry, 0, n)
	for i := range n {
		fields := map[string]string{}
		for _, f := range def.Fields {
			fields[f] = fmt.Sprintf("seed %s %d", f, i)
		}
		e, _ := datastore.NewEntry(c, fields, fields, "https://img/seed")
		if err := m.Insert(context.Background(), e); err == nil {
			out = append(out, *e)
		}
	}
	return out
}

// fakeUpstream serves canned records per category and counts calls.
type fakeUpstream struct {
	mu      sync.Mutex
	records map[category.Category][]wikidata.Record
	err     error
	calls   map[category.Category]int
	delay   time.Duration
	// cancelled counts calls made with an already cancelled context.
	cancelled int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		records: map[category.Category][]wikidata.Record{},
		calls:   map[category.Category]int{},
	}
}

func (f *fakeUpstream) FetchCategory(ctx context.Context, c category.Category) ([]wikidata.Record, error) {
	f.mu.Lock()
	f.calls[c]++
	if ctx.Err() != nil {
		f.cancelled++
	}
	records, err, delay := f.records[c], f.err, f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if records == nil {
		return []wikidata.Record{}, nil
	}
	return records, nil
}

func (f *fakeUpstream) callCount(c category.Category) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[c]
}

func (f *fakeUpstream) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// makeRecords builds n distinct upstream records for c, all with an image.
func makeRecords(c category.Category, n int) []wikidata.Record {
	def, _ := category.Lookup(c)
	out := make([]wikidata.Record, 0, n)
	for i := range n {
		r := wikidata.Record{category.ImageField: fmt.Sprintf("http://commons.wikimedia.org/%s/%d.jpg", c, i)}
		for _, f := range def.Fields {
			r[f] = fmt.Sprintf("upstream %s %d", f, i)
		}
		out = append(out, r)
	}
	return out
}

// fakeRecorder captures top-ups and operation outcomes.
type fakeRecorder struct {
	mu         sync.Mutex
	topUps     map[string][]int
	operations map[string]map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		topUps:     map[string][]int{},
		operations: map[string]map[string]int{},
	}
}

func (r *fakeRecorder) RecordOperation(op, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.operations[op] == nil {
		r.operations[op] = map[string]int{}
	}
	r.operations[op][status]++
}

func (r *fakeRecorder) RecordDuration(string, float64) {}

func (r *fakeRecorder) RecordTopUp(c string, requested, _, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topUps[c] = append(r.topUps[c], requested)
}

func (r *fakeRecorder) SetStock(string, int64) {}

func (r *fakeRecorder) requested(c category.Category) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.topUps[string(c)])
}

func (r *fakeRecorder) status(op, status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operations[op][status]
}
