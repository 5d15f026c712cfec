package ai

import (
	"fmt"
	"strings"

	"github.com/gitscribe/gitscribe/internal/models"
)

// maxPatchChars bounds how much of a single file's patch reaches the
// prompt, so an arbitrarily large diff cannot blow up the request
const maxPatchChars = 1500

const truncationMarker = "\n... (truncated)"

// BuildPrompt renders a commit diff batch into the drafting prompt
func BuildPrompt(commitDiffs []models.CommitDiff, repoFullName string) string {
	summaries := make([]string, 0, len(commitDiffs))
	for _, cd := range commitDiffs {
		summaries = append(summaries, commitSection(cd))
	}

	var b strings.Builder
	b.WriteString("You are an experienced development blogger. Analyze the commit changes in the repository below and write a development blog post.\n\n")
	fmt.Fprintf(&b, "Repository: %s\n\n", repoFullName)
	b.WriteString(strings.Join(summaries, "\n\n---\n\n"))
	b.WriteString(`

---

Analyze the commit changes above and return a blog post as JSON in exactly this format:

{
  "title": "blog title (attractive and specific)",
  "summary": "summary of 2-3 sentences",
  "tags": ["tag1", "tag2", "tag3"],
  "content": "blog body in markdown format"
}

Rules:
1. Write in English
2. Use an easy-to-read tone aimed at developers
3. Do not just list changes: explain why they were made and what problem they solved
4. Include technical insights and lessons learned
5. Quote the key parts of the code changes as code blocks
6. The title must reflect the specific work, not a generic phrase like "Today's Development Diary"
7. Markdown headings start at ## (h1 is reserved for the blog title)

Return JSON only. Do not include any other text.`)
	return b.String()
}

func commitSection(cd models.CommitDiff) string {
	var b strings.Builder

	shortSha := cd.Commit.Sha
	if len(shortSha) > 7 {
		shortSha = shortSha[:7]
	}

	fmt.Fprintf(&b, "## Commit: %s - %s\n", shortSha, cd.Commit.Message)
	fmt.Fprintf(&b, "Author: %s | Date: %s\n\n", cd.Commit.Author, cd.Commit.Date.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "Changed files (%d additions, %d deletions total):\n", cd.Stats.Additions, cd.Stats.Deletions)
	for _, f := range cd.Files {
		fmt.Fprintf(&b, "  - %s (%s: +%d/-%d)\n", f.Filename, f.Status, f.Additions, f.Deletions)
	}

	b.WriteString("\nChanges:\n")
	patches := make([]string, 0, len(cd.Files))
	for _, f := range cd.Files {
		if f.Patch == "" {
			continue
		}
		patch := f.Patch
		if len(patch) > maxPatchChars {
			patch = patch[:maxPatchChars] + truncationMarker
		}
		patches = append(patches, fmt.Sprintf("### %s\n```diff\n%s\n```", f.Filename, patch))
	}
	b.WriteString(strings.Join(patches, "\n\n"))

	return b.String()
}
