package login

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/service"
)

type stubAuth struct {
	creds service.Credentials
}

func (s *stubAuth) Login(_ context.Context, c service.Credentials) (*model.User, error) {
	s.creds = c
	return &model.User{ID: "u1", Email: c.Email}, nil
}

func TestValidateEmail(t *testing.T) {
	for _, ok := range []string{"ada@example.com", " ada@example.com "} {
		if err := validateEmail(ok); err != nil {
			t.Errorf("validateEmail(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "   ", "ada", "ada@"} {
		if err := validateEmail(bad); err == nil {
			t.Errorf("validateEmail(%q) accepted", bad)
		}
	}
	if err := validateRequired("Password")(""); err == nil || err.Error() != "Password is required" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestFailedSignInReturnsToForm(t *testing.T) {
	m := New(&stubAuth{}, "ada@example.com")
	m.mode = ModeSubmitting
	m.in.pass = "secret"

	next, _ := m.Update(resultMsg{err: &api.APIError{Status: 401, Message: "Invalid credentials"}})
	m = next.(Model)

	if m.mode != ModeForm || m.in.pass != "" {
		t.Errorf("expected form with cleared password, got mode=%v", m.mode)
	}
	if !strings.Contains(m.View(), "Invalid credentials") {
		t.Errorf("error not shown:\n%s", m.View())
	}
	if _, err := m.User(); err == nil {
		t.Error("User should fail before sign-in completes")
	}
}

func TestSubmitTrimsEmailAndFinishes(t *testing.T) {
	auth := &stubAuth{}
	m := New(auth, " ada@example.com ")
	m.in.pass = "secret"

	next, _ := m.Update(m.submit()())
	m = next.(Model)

	if auth.creds.Email != "ada@example.com" || auth.creds.Password != "secret" {
		t.Errorf("unexpected credentials %+v", auth.creds)
	}
	u, err := m.User()
	if err != nil || u.ID != "u1" {
		t.Errorf("unexpected result %+v, %v", u, err)
	}
}

func TestAbortedUser(t *testing.T) {
	m := New(&stubAuth{}, "")
	m.mode = ModeAborted
	if _, err := m.User(); !errors.Is(err, ErrAborted) {
		t.Errorf("expected ErrAborted, got %v", err)
	}
}
