package conversation

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxImageBytes = 5 << 20

// FileImageResolver resolves locators that are local file paths into base64
// data URLs. Locators that already look like URLs pass through untouched.
type FileImageResolver struct{}

func (FileImageResolver) Resolve(_ context.Context, ref string) (string, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return "", fmt.Errorf("image ref is empty")
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") || strings.HasPrefix(trimmed, "data:") {
		return trimmed, nil
	}

	info, err := os.Stat(trimmed)
	if err != nil {
		return "", fmt.Errorf("image %s: %w", trimmed, err)
	}
	if info.Size() > maxImageBytes {
		return "", fmt.Errorf("image %s exceeds %d bytes", trimmed, maxImageBytes)
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", trimmed, err)
	}

	return fmt.Sprintf("data:%s;base64,%s", mediaType(trimmed), base64.StdEncoding.EncodeToString(raw)), nil
}

func mediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
