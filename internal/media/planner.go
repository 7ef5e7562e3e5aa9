package media

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	// NoDateDir holds items without a record time.
	NoDateDir = "(no-date)"
	// CollisionsDir holds quarantined collision members.
	CollisionsDir = "collisions"
)

// incrementPattern matches a stem ending in " (N)".
var incrementPattern = regexp.MustCompile(`^(.*?)\s*\((\d+)\)$`)

// Planner computes destination paths inside a destination root.
type Planner struct {
	Root   string
	Policy RecordTimePolicy
	FS     FilesystemManager
}

func NewPlanner(root string, policy RecordTimePolicy, fsmgr FilesystemManager) *Planner {
	return &Planner{Root: root, Policy: policy, FS: fsmgr}
}

// Plan returns the canonical destination of d:
// <root>/<year>/<album-or-month>/<name> when d has a record time,
// <root>/(no-date)/[<album>/]<name> otherwise.
func (p *Planner) Plan(d *Descriptor) string {
	album, hasAlbum := d.Album()
	if t, ok := p.Policy.RecordTime(d); ok {
		sub := strconv.Itoa(int(t.Month()))
		if hasAlbum {
			sub = album
		}
		return filepath.Join(p.Root, strconv.Itoa(t.Year()), sub, d.Name())
	}
	if hasAlbum {
		return filepath.Join(p.Root, NoDateDir, album, d.Name())
	}
	return filepath.Join(p.Root, NoDateDir, d.Name())
}

// Quarantine returns the destination of a collision member.
func (p *Planner) Quarantine(d *Descriptor) string {
	return filepath.Join(p.Root, CollisionsDir, d.Name())
}

// Resolve returns path, or the first " (N)" variant of it that does not exist.
func (p *Planner) Resolve(path string) (string, error) {
	for {
		exists, err := p.FS.Exists(path)
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", path, err)
		}
		if !exists {
			return path, nil
		}
		path = MaybeIncrement(path)
	}
}

// MaybeIncrement turns "name (N).ext" into "name (N+1).ext" and any other
// "name.ext" into "name (1).ext".
func MaybeIncrement(path string) string {
	dir, file := filepath.Split(path)
	ext := filepath.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	if m := incrementPattern.FindStringSubmatch(stem); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			return dir + fmt.Sprintf("%s (%d)%s", m[1], n+1, ext)
		}
	}
	return dir + fmt.Sprintf("%s (1)%s", stem, ext)
}

// stripIncrement removes a trailing " (N)" from the stem of name.
func stripIncrement(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if m := incrementPattern.FindStringSubmatch(stem); m != nil {
		return m[1] + ext
	}
	return name
}
