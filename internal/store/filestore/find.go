package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const maxSlugLength = 50

var (
	idPrefixRe      = regexp.MustCompile(`^(\d+)-`)
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
)

// generateSlug converts a task name to a filename-friendly slug.
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = nonAlphanumeric.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLength {
		truncated := slug[:maxSlugLength]
		// Only trim to last hyphen if we cut mid-word.
		if slug[maxSlugLength] != '-' {
			if idx := strings.LastIndex(truncated, "-"); idx > 0 {
				truncated = truncated[:idx]
			}
		}
		slug = strings.TrimRight(truncated, "-")
	}
	if slug == "" {
		slug = "task"
	}
	return slug
}

// generateFilename creates a task filename from an ID and name.
func generateFilename(id int, name string) string {
	padWidth := 3
	if n := len(strconv.Itoa(id)); n > padWidth {
		padWidth = n
	}
	return fmt.Sprintf("%0*d-%s.md", padWidth, id, generateSlug(name))
}

// idFromFilename extracts the numeric ID prefix of a task filename.
func idFromFilename(filename string) (int, bool) {
	m := idPrefixRe.FindStringSubmatch(filename)
	if len(m) < 2 { //nolint:mnd // regex capture group
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// taskFiles maps task IDs to file paths for every NNN-slug.md in dir.
func taskFiles(dir string) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[int]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".md" {
			continue
		}
		if id, ok := idFromFilename(name); ok {
			files[id] = filepath.Join(dir, name)
		}
	}
	return files, nil
}
