package credentials

import (
	"errors"
	"testing"
)

// TestSystemKeyringSetGetDelete exercises the OS keyring. Headless machines
// without a Secret Service report ErrKeyringNotAvailable and the test is skipped.
func TestSystemKeyringSetGetDelete(t *testing.T) {
	var _ Keyring = &systemKeyring{}
	sysKeyring := &systemKeyring{}

	service := "grocat-test-keyring-crud"
	account := "testuser"

	err := sysKeyring.Set(service, account, "secretpassword123")
	if errors.Is(err, ErrKeyringNotAvailable) {
		t.Skip("system keyring not available in this environment")
	}
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	defer func() { _ = sysKeyring.Delete(service, account) }()

	got, err := sysKeyring.Get(service, account)
	if err != nil || got != "secretpassword123" {
		t.Errorf("Get() = (%q, %v)", got, err)
	}

	if err := sysKeyring.Delete(service, account); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := sysKeyring.Get(service, account); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete err = %v, want ErrNotFound", err)
	}
}

func TestMockKeyringNotFound(t *testing.T) {
	k := NewMockKeyring()
	if _, err := k.Get("svc", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if err := k.Delete("svc", "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
}
