package arbiter

import (
	"context"
	"errors"
	"testing"
)

type fakeReader struct {
	profiles  map[string]Profile
	lastLimit int
}

func (f *fakeReader) GetByID(_ context.Context, id string) (Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeReader) List(_ context.Context, limit int) ([]Profile, error) {
	f.lastLimit = limit
	out := make([]Profile, 0, len(f.profiles))
	for _, p := range f.profiles {
		out = append(out, p)
	}
	return out, nil
}

func TestServiceGetByID(t *testing.T) {
	fake := &fakeReader{profiles: map[string]Profile{
		"a1": {ID: "a1", FullName: "Ada Arbiter", ActiveCases: 2},
	}}
	svc := NewService(fake)

	p, err := svc.GetByID(context.Background(), "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.ActiveCases != 2 {
		t.Fatalf("expected caseload 2, got %d", p.ActiveCases)
	}

	_, err = svc.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceListPassesLimit(t *testing.T) {
	fake := &fakeReader{profiles: map[string]Profile{}}
	svc := NewService(fake)

	if _, err := svc.List(context.Background(), 25); err != nil {
		t.Fatalf("list: %v", err)
	}
	if fake.lastLimit != 25 {
		t.Fatalf("expected limit 25 forwarded, got %d", fake.lastLimit)
	}
}
