package auth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/technosupport/ts-signal/internal/auth"
	"github.com/technosupport/ts-signal/internal/session"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CAMERA_1", "cam_front:secret1")
	t.Setenv("CAMERA_2", "cam_back:secret2")
	t.Setenv("VIEWER_1", "guard:secret3")

	d := auth.NewDirectory()
	if loaded := d.LoadFromEnv(); loaded != 3 {
		t.Fatalf("Expected 3 users loaded, got %d", loaded)
	}

	if !d.Verify("cam_front", "secret1", session.RoleCamera) {
		t.Error("Expected cam_front to verify")
	}
	if d.Verify("cam_front", "wrong", session.RoleCamera) {
		t.Error("Wrong password must not verify")
	}
	if d.Verify("cam_front", "secret1", session.RoleViewer) {
		t.Error("Camera user must not verify under viewer role")
	}
	if !d.Verify("guard", "secret3", session.RoleViewer) {
		t.Error("Expected guard to verify")
	}
}

func TestLoadFromEnv_MalformedEntrySkipped(t *testing.T) {
	t.Setenv("CAMERA_1", "no-separator")
	t.Setenv("CAMERA_2", "ok:pass")

	d := auth.NewDirectory()
	// CAMERA_1 is malformed but present, so scanning continues to CAMERA_2.
	if loaded := d.LoadFromEnv(); loaded != 1 {
		t.Fatalf("Expected 1 user loaded, got %d", loaded)
	}
	if !d.Verify("ok", "pass", session.RoleCamera) {
		t.Error("Expected ok to verify")
	}
}

func TestVerify_UnknownUser(t *testing.T) {
	d := auth.NewDirectory()
	if d.Verify("ghost", "whatever", session.RoleViewer) {
		t.Error("Unknown user must not verify")
	}
}

func TestLoadFile(t *testing.T) {
	hash, err := auth.HashPassword("filepass")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "users.yaml")
	content := "cameras:\n  - username: cam_file\n    password_hash: \"" + hash + "\"\nviewers:\n  - username: viewer_file\n    password_hash: \"" + hash + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	d := auth.NewDirectory()
	if err := d.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if d.Size() != 2 {
		t.Errorf("Expected 2 users, got %d", d.Size())
	}
	if !d.Verify("cam_file", "filepass", session.RoleCamera) {
		t.Error("Expected cam_file to verify")
	}
	if !d.Verify("viewer_file", "filepass", session.RoleViewer) {
		t.Error("Expected viewer_file to verify")
	}
}

func TestLoadDefaults(t *testing.T) {
	d := auth.NewDirectory()
	d.LoadDefaults()
	if !d.Verify("camera_demo", "demo123", session.RoleCamera) {
		t.Error("Expected demo camera credentials to verify")
	}
	if !d.Verify("viewer_demo", "demo123", session.RoleViewer) {
		t.Error("Expected demo viewer credentials to verify")
	}
}
