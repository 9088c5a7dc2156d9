package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(_ context.Context) error { return f.err }

type fakeBalance struct{ err error }

func (f fakeBalance) CheckBalance(_ context.Context, _ string) error { return f.err }

func TestStoreCheck(t *testing.T) {
	c := StoreCheck(fakePinger{})
	if c.Name != "store" {
		t.Errorf("name = %q, want store", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}

	wantErr := errors.New("connection refused")
	c = StoreCheck(fakePinger{err: wantErr})
	if err := c.Check(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Check() = %v, want %v", err, wantErr)
	}
}

func TestBalanceCheck(t *testing.T) {
	c := BalanceCheck(fakeBalance{}, "user-1")
	if c.Name != "credits" {
		t.Errorf("name = %q, want credits", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}

	wantErr := errors.New("insufficient credits")
	c = BalanceCheck(fakeBalance{err: wantErr}, "user-1")
	if err := c.Check(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("Check() = %v, want %v", err, wantErr)
	}
}
