package auth

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/technosupport/ts-signal/internal/session"
)

// Directory holds the per-role credential sets the login endpoint checks
// against. Usernames map to Argon2id password hashes; the two role maps are
// independent namespaces, matching the login contract (username + role).
type Directory struct {
	mu      sync.RWMutex
	cameras map[string]string
	viewers map[string]string
}

func NewDirectory() *Directory {
	return &Directory{
		cameras: make(map[string]string),
		viewers: make(map[string]string),
	}
}

// LoadFromEnv reads CAMERA_1=user:pass, CAMERA_2=..., VIEWER_1=... style
// variables, hashing each password. Returns the number of users loaded.
func (d *Directory) LoadFromEnv() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	loaded := 0
	loaded += loadRoleFromEnv("CAMERA", d.cameras)
	loaded += loadRoleFromEnv("VIEWER", d.viewers)
	return loaded
}

func loadRoleFromEnv(prefix string, dst map[string]string) int {
	loaded := 0
	for i := 1; ; i++ {
		raw := os.Getenv(fmt.Sprintf("%s_%d", prefix, i))
		if raw == "" {
			return loaded
		}
		username, password, ok := strings.Cut(raw, ":")
		if !ok || username == "" || password == "" {
			log.Printf("Directory: skipping malformed %s_%d entry", prefix, i)
			continue
		}
		hash, err := HashPassword(password)
		if err != nil {
			log.Printf("Directory: hashing failed for %s_%d: %v", prefix, i, err)
			continue
		}
		dst[username] = hash
		loaded++
	}
}

// LoadDefaults installs the dev credentials. Only for use when nothing else
// is configured.
func (d *Directory) LoadDefaults() {
	d.mu.Lock()
	defer d.mu.Unlock()

	camHash, _ := HashPassword("demo123")
	viewHash, _ := HashPassword("demo123")
	d.cameras["camera_demo"] = camHash
	d.viewers["viewer_demo"] = viewHash
	log.Printf("WARNING: using default demo credentials; set CAMERA_n/VIEWER_n env vars in production")
}

type userFile struct {
	Cameras []userEntry `yaml:"cameras"`
	Viewers []userEntry `yaml:"viewers"`
}

type userEntry struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

// LoadFile replaces the directory contents with entries from a YAML user file.
// Hashes are stored pre-computed in the file, so a reload never re-hashes.
func (d *Directory) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var uf userFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return fmt.Errorf("parse user file: %w", err)
	}

	cameras := make(map[string]string, len(uf.Cameras))
	for _, u := range uf.Cameras {
		if u.Username != "" && u.PasswordHash != "" {
			cameras[u.Username] = u.PasswordHash
		}
	}
	viewers := make(map[string]string, len(uf.Viewers))
	for _, u := range uf.Viewers {
		if u.Username != "" && u.PasswordHash != "" {
			viewers[u.Username] = u.PasswordHash
		}
	}

	d.mu.Lock()
	d.cameras = cameras
	d.viewers = viewers
	d.mu.Unlock()

	log.Printf("Directory: loaded %d cameras, %d viewers from %s", len(cameras), len(viewers), path)
	return nil
}

// Verify checks username/password for the given role. Unknown usernames run a
// dummy comparison so timing does not reveal which usernames exist.
func (d *Directory) Verify(username, password string, role session.Role) bool {
	d.mu.RLock()
	var hash string
	var ok bool
	switch role {
	case session.RoleCamera:
		hash, ok = d.cameras[username]
	case session.RoleViewer:
		hash, ok = d.viewers[username]
	}
	d.mu.RUnlock()

	if !ok {
		CheckPassword(password, DummyHash)
		return false
	}
	match, err := CheckPassword(password, hash)
	return err == nil && match
}

// Size returns the total number of users across both roles.
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cameras) + len(d.viewers)
}
