package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFileIcon(t *testing.T) {
	assert.Equal(t, "📄", fileIcon("pdf"))
	assert.Equal(t, "📄", fileIcon(".PDF"))
	assert.Equal(t, "📘", fileIcon("docx"))
	assert.Equal(t, "📁", fileIcon("zip"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", formatSize(0))
	assert.Equal(t, "0 B", formatSize(-5))
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 kB", formatSize(1536))
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "unknown", formatAge(time.Time{}, now))
	assert.Equal(t, "3 days ago", formatAge(now.Add(-72*time.Hour), now))
}

func TestUsageBar(t *testing.T) {
	s := NewStyles(ThemeDark)
	bar := usageBar(50, 10, s)
	assert.Equal(t, 5, strings.Count(bar, "█"))
	assert.Equal(t, 5, strings.Count(bar, "░"))

	assert.Equal(t, 10, strings.Count(usageBar(250, 10, s), "█"))
	assert.Equal(t, 10, strings.Count(usageBar(-1, 10, s), "░"))
	assert.Empty(t, usageBar(50, 0, s))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "long…", truncate("longname", 5))
	assert.Equal(t, "…", truncate("longname", 1))
}
