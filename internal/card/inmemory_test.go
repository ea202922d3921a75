package card

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryStoreGet(t *testing.T) {
	s := NewInMemoryStore()
	want := Payload{SenderName: "Ana", RecipientName: "Lee", Message: "Hi!", TemplateImageURL: "https://x/img.png"}
	if err := s.Put(context.Background(), "card-1", want); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(context.Background(), "card-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Fatalf("Get() = %+v, want %+v", got, want)
	}

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNewStoreWithoutDatabaseURLIsInMemory(t *testing.T) {
	s, err := NewStore(context.Background(), "  ")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("NewStore() = %T, want *InMemoryStore", s)
	}
}
