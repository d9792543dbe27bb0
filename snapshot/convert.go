package snapshot

import (
	"github.com/jguida941/adaptive-hashmap-studio/chaining"
	"github.com/jguida941/adaptive-hashmap-studio/config"
	"github.com/jguida941/adaptive-hashmap-studio/engineerr"
	"github.com/jguida941/adaptive-hashmap-studio/hybrid"
	"github.com/jguida941/adaptive-hashmap-studio/internal/probe"
	"github.com/jguida941/adaptive-hashmap-studio/robinhood"
)

func entriesFromItems(items func(fn func(key, val []byte) bool)) []entryRecord {
	var out []entryRecord
	items(func(k, v []byte) bool {
		out = append(out, entryRecord{
			Key:   append([]byte(nil), k...),
			Value: append([]byte(nil), v...),
		})
		return false
	})
	return out
}

func chainingToRecord(m *chaining.Map) *chainingRecord {
	return &chainingRecord{
		BucketCount:     m.BucketCount(),
		GroupsPerBucket: m.GroupsPerBucket(),
		HashFn:          probe.NameOf(m.Hasher()),
		Entries:         entriesFromItems(m.Items),
	}
}

func chainingFromRecord(r *chainingRecord) (*chaining.Map, error) {
	hasher, ok := probe.ByName(r.HashFn)
	if !ok {
		return nil, engineerr.Invariantf("snapshot: unknown hash_fn %q", r.HashFn)
	}
	m := chaining.New(chaining.Config{
		Buckets:         r.BucketCount,
		GroupsPerBucket: r.GroupsPerBucket,
		Hasher:          hasher,
	})
	for _, e := range r.Entries {
		m.Put(e.Key, e.Value)
	}
	return m, nil
}

func robinHoodToRecord(m *robinhood.Map) *robinHoodRecord {
	return &robinHoodRecord{
		Capacity: m.Capacity(),
		HashFn:   probe.NameOf(m.Hasher()),
		Entries:  entriesFromItems(m.Items),
	}
}

func robinHoodFromRecord(r *robinHoodRecord) (*robinhood.Map, error) {
	hasher, ok := probe.ByName(r.HashFn)
	if !ok {
		return nil, engineerr.Invariantf("snapshot: unknown hash_fn %q", r.HashFn)
	}
	m := robinhood.New(robinhood.Config{InitialCapacity: r.Capacity, Hasher: hasher})
	for _, e := range r.Entries {
		m.Put(e.Key, e.Value)
	}
	return m, nil
}

func backendToRecord(b any) (*backendRecord, error) {
	switch v := b.(type) {
	case *chaining.Map:
		return &backendRecord{Kind: config.BackendChaining, Chaining: chainingToRecord(v)}, nil
	case *robinhood.Map:
		return &backendRecord{Kind: config.BackendRobinHood, RobinHood: robinHoodToRecord(v)}, nil
	default:
		return nil, engineerr.Invariantf("snapshot: unsupported backend type")
	}
}

func backendFromRecord(r *backendRecord) (any, error) {
	switch r.Kind {
	case config.BackendChaining:
		return chainingFromRecord(r.Chaining)
	case config.BackendRobinHood:
		return robinHoodFromRecord(r.RobinHood)
	default:
		return nil, engineerr.Invariantf("snapshot: unknown backend kind %q", r.Kind)
	}
}

func hybridToRecord(m *hybrid.Map) (*hybridRecord, error) {
	st := m.Export()
	rec := &hybridRecord{Guardrails: st.Guardrails, Active: st.Active}

	if st.InTransition {
		rec.InTransition = true
		rec.Compacting = st.Compacting
		src, err := backendToRecord(st.Source)
		if err != nil {
			return nil, err
		}
		dst, err := backendToRecord(st.Target)
		if err != nil {
			return nil, err
		}
		rec.Source, rec.Target = src, dst
		return rec, nil
	}

	steady, err := backendToRecord(st.Backend)
	if err != nil {
		return nil, err
	}
	rec.Steady = steady
	return rec, nil
}

func hybridFromRecord(r *hybridRecord) (*hybrid.Map, error) {
	st := hybrid.ExportedState{Guardrails: r.Guardrails, Active: r.Active}

	if r.InTransition {
		src, err := backendFromRecord(r.Source)
		if err != nil {
			return nil, err
		}
		dst, err := backendFromRecord(r.Target)
		if err != nil {
			return nil, err
		}
		st.InTransition = true
		st.Compacting = r.Compacting
		st.Source, st.Target = src, dst
		return hybrid.Restore(st), nil
	}

	b, err := backendFromRecord(r.Steady)
	if err != nil {
		return nil, err
	}
	st.Backend = b
	return hybrid.Restore(st), nil
}
