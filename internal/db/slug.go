package db

import (
	"fmt"
	"time"

	"github.com/gosimple/slug"
)

// Slugify derives a URL-friendly, date-stamped slug from a post title
func Slugify(title string) string {
	return SlugifyAt(title, time.Now().UTC())
}

// SlugifyAt is Slugify with an explicit date
func SlugifyAt(title string, at time.Time) string {
	return at.Format("2006-01-02") + "-" + slug.Make(title)
}

// ResolveSlug appends an incrementing numeric suffix to base until
// exists reports the candidate as free
func ResolveSlug(base string, exists func(string) (bool, error)) (string, error) {
	candidate := base
	for counter := 1; ; counter++ {
		taken, err := exists(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to probe slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
}
