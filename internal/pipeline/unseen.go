package pipeline

import "github.com/gitscribe/gitscribe/internal/models"

// UnseenCommits returns the fetched commits whose SHAs are absent from
// the processed set, preserving the fetched order. Pure function; safe
// to call repeatedly.
func UnseenCommits(fetched []models.CommitInfo, processed []string) []models.CommitInfo {
	seen := make(map[string]struct{}, len(processed))
	for _, sha := range processed {
		seen[sha] = struct{}{}
	}

	unseen := make([]models.CommitInfo, 0, len(fetched))
	for _, c := range fetched {
		if _, ok := seen[c.Sha]; !ok {
			unseen = append(unseen, c)
		}
	}
	return unseen
}
