package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrDatasetNotFound is returned by Get and Preview when no dataset is cached
// under the requested name. Match with errors.Is.
var ErrDatasetNotFound = errors.New("dataset not found")

// DefaultPreviewRows is the number of records Preview returns when rows <= 0.
const DefaultPreviewRows = 5

// Cache maps dataset names to their most recently loaded Dataset.
//
// Datasets are immutable once stored, so readers only hold the lock long
// enough to fetch a pointer. Load builds the new Dataset before taking the
// write lock; the lock covers the map swap and the load stamp only.
type Cache struct {
	mu       sync.RWMutex
	datasets map[string]*entry
	seq      uint64

	now func() time.Time
}

type entry struct {
	ds  *Dataset
	seq uint64
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		datasets: make(map[string]*entry),
		now:      time.Now,
	}
}

// LoadOption customizes a Load call.
type LoadOption func(*Dataset)

// WithSource records where the dataset came from.
func WithSource(source string) LoadOption {
	return func(d *Dataset) { d.Source = source }
}

// WithLoadID sets the load identifier instead of generating one.
func WithLoadID(id string) LoadOption {
	return func(d *Dataset) { d.LoadID = id }
}

// Load publishes a parse result under name, replacing any previous dataset
// with that name. Concurrent loads of the same name resolve last-writer-wins;
// readers see either the old or the new dataset, never a mix.
func (c *Cache) Load(name string, res ParseResult, opts ...LoadOption) *Dataset {
	columns := res.Columns
	if columns == nil {
		columns = []string{}
	}
	records := res.Records
	if records == nil {
		records = []Record{}
	}
	errs := res.Errors
	if errs == nil {
		errs = []ParseError{}
	}

	ds := &Dataset{
		Name:     name,
		LoadID:   uuid.New().String(),
		Columns:  columns,
		Records:  records,
		Errors:   errs,
		RowCount: len(records),
	}
	for _, opt := range opts {
		opt(ds)
	}

	c.mu.Lock()
	c.seq++
	ds.LoadedAt = c.now()
	c.datasets[name] = &entry{ds: ds, seq: c.seq}
	c.mu.Unlock()

	return ds
}

// Get returns the dataset stored under name. If sampleSize is positive only
// the first min(sampleSize, RowCount) records are returned, in order.
func (c *Cache) Get(name string, sampleSize int) (Dataset, error) {
	ds, ok := c.lookup(name)
	if !ok {
		return Dataset{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}

	out := *ds
	out.Records = sample(ds.Records, sampleSize)
	return out, nil
}

// Preview returns the first rows records of a dataset, DefaultPreviewRows
// when rows is not positive.
func (c *Cache) Preview(name string, rows int) ([]Record, error) {
	if rows <= 0 {
		rows = DefaultPreviewRows
	}
	ds, err := c.Get(name, rows)
	if err != nil {
		return nil, err
	}
	return ds.Records, nil
}

// List returns metadata for every cached dataset, oldest load first.
func (c *Cache) List() []DatasetInfo {
	c.mu.RLock()
	entries := make([]*entry, 0, len(c.datasets))
	for _, e := range c.datasets {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	infos := make([]DatasetInfo, len(entries))
	for i, e := range entries {
		infos[i] = e.ds.Info()
	}
	return infos
}

// Len returns the number of cached datasets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.datasets)
}

func (c *Cache) lookup(name string) (*Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.datasets[name]
	if !ok {
		return nil, false
	}
	return e.ds, true
}

// sample truncates records to n without reordering. The result is capacity
// clipped so appends by the caller cannot write into the shared slice.
func sample(records []Record, n int) []Record {
	if n <= 0 || n >= len(records) {
		return records[:len(records):len(records)]
	}
	return records[:n:n]
}
