package export

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"rowexport/pkg/model"
)

// fakeStore keeps records in memory and logs every call.
type fakeStore struct {
	records []*model.Record
	nextID  int64

	bulkCalls [][]*model.Record
	saves     int
	gets      []map[string]any

	failBulkAt int // 1-based bulk call that fails; 0 never
	failSave   error
	failGet    error
}

func (s *fakeStore) Get(ctx context.Context, m *model.Model, filter map[string]any) (*model.Record, error) {
	s.gets = append(s.gets, filter)
	if s.failGet != nil {
		return nil, s.failGet
	}
	var found []*model.Record
	for _, r := range s.records {
		match := true
		for k, v := range filter {
			if r.Value(k) != v {
				match = false
				break
			}
		}
		if match {
			found = append(found, r)
		}
	}
	switch len(found) {
	case 0:
		return nil, model.ErrNotFound
	case 1:
		return found[0].Clone(), nil
	}
	return nil, model.ErrMultipleRecords
}

func (s *fakeStore) Save(ctx context.Context, rec *model.Record) error {
	s.saves++
	if s.failSave != nil {
		return s.failSave
	}
	if rec.PK() != nil {
		for i, r := range s.records {
			if r.PK() == rec.PK() {
				s.records[i] = rec.Clone()
				return nil
			}
		}
	}
	if rec.Model().HasIdentity() {
		s.nextID++
		rec.SetPK(s.nextID)
	}
	s.records = append(s.records, rec.Clone())
	return nil
}

func (s *fakeStore) BulkCreate(ctx context.Context, m *model.Model, recs []*model.Record) (int64, error) {
	s.bulkCalls = append(s.bulkCalls, recs)
	if s.failBulkAt == len(s.bulkCalls) {
		return 0, errors.New("bulk insert failed")
	}
	for _, r := range recs {
		c := r.Clone()
		if m.HasIdentity() {
			s.nextID++
			c.SetPK(s.nextID)
		}
		s.records = append(s.records, c)
	}
	return int64(len(recs)), nil
}

// dump renders stored records as sorted "k=v,..." lines over names.
func (s *fakeStore) dump(names ...string) []string {
	out := make([]string, 0, len(s.records))
	for _, r := range s.records {
		parts := make([]string, len(names))
		for i, n := range names {
			parts[i] = fmt.Sprintf("%s=%v", n, r.Value(n))
		}
		out = append(out, strings.Join(parts, ","))
	}
	sort.Strings(out)
	return out
}
