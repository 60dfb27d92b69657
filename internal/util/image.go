// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxImageBytes bounds attached images.
const MaxImageBytes = 20 << 20

// ErrNotImage is returned for attachments that are not a supported image.
var ErrNotImage = errors.New("not a png, jpeg, gif or webp image")

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// ImageDataURL reads an image file and returns it as a base64 data URL.
func ImageDataURL(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxImageBytes {
		return "", fmt.Errorf("%s: image larger than %d MB", filepath.Base(path), MaxImageBytes>>20)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return EncodeImage(data, filepath.Ext(path))
}

// EncodeImage returns data as a data URL. The type is sniffed from the
// content; ext is the fallback.
func EncodeImage(data []byte, ext string) (string, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = imageTypes[strings.ToLower(ext)]
	}
	if mime == "" {
		return "", ErrNotImage
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
