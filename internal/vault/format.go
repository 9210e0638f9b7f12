// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vault materializes a validated research plan into a tree of
// interlinked Obsidian Markdown notes. Filenames encode lineage: a child
// note's basename is its parent's basename plus its own sanitized title.
package vault

import (
	"regexp"
	"strings"
)

// invalidFilenameChars are stripped from titles before use as filenames.
var invalidFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// tagSeparators collapses whitespace and hyphens into underscores.
var tagSeparators = regexp.MustCompile(`[\s-]+`)

// invalidTagChars are stripped from tags after normalization.
var invalidTagChars = regexp.MustCompile(`[^a-z0-9_/]`)

// maxBasenameLen caps a single sanitized title segment.
const maxBasenameLen = 100

// SanitizeFilename strips characters unsuitable for filenames, replaces
// spaces with underscores, and caps the length.
func SanitizeFilename(s string) string {
	s = invalidFilenameChars.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxBasenameLen {
		s = s[:maxBasenameLen]
	}
	return s
}

// FormatLink renders a note basename as an Obsidian wikilink.
func FormatLink(basename string) string {
	return "[[" + basename + "]]"
}

// FormatTag normalizes a raw string into an Obsidian tag: lowercase,
// spaces and hyphens replaced with underscores, invalid characters
// removed, with a leading '#'. Empty or fully-stripped input yields "".
func FormatTag(raw string) string {
	tag := strings.TrimSpace(raw)
	tag = strings.TrimPrefix(tag, "#")
	tag = tagSeparators.ReplaceAllString(tag, "_")
	tag = strings.ToLower(tag)
	tag = invalidTagChars.ReplaceAllString(tag, "")
	if tag == "" {
		return ""
	}
	return "#" + tag
}

// formatMetadata renders the plain-text metadata block that heads every
// generated note: note_type, concepts as tags, and the parent link.
func formatMetadata(noteType string, concepts []string, parentBasename string, related []string) string {
	var lines []string

	typeTag := FormatTag(noteType)
	if typeTag == "" {
		typeTag = "#note"
	}
	lines = append(lines, "note_type: "+typeTag)

	var tags []string
	for _, c := range concepts {
		if t := FormatTag(c); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		tags = []string{"#placeholder"}
	}
	lines = append(lines, "concepts: "+strings.Join(tags, " "))

	if parentBasename != "" {
		lines = append(lines, "parent_note: "+FormatLink(parentBasename))
	}

	var links []string
	for _, r := range related {
		if r != "" {
			links = append(links, FormatLink(r))
		}
	}
	if len(links) > 0 {
		lines = append(lines, "related_notes: "+strings.Join(links, ", "))
	}

	return strings.Join(lines, "\n")
}

// FormatNote prepends the metadata block to a note body, separated by a
// blank line.
func FormatNote(body, noteType string, concepts []string, parentBasename string, related []string) string {
	return formatMetadata(noteType, concepts, parentBasename, related) + "\n\n" + strings.TrimSpace(body)
}
