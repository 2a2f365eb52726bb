package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path"
	"strings"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".svg":  true,
	".bmp":  true,
	".webp": true,
	".ico":  true,
}

// ImageAsset an image file shipped with the project.
type ImageAsset struct {
	FileName     string
	RelativePath string
	SizeBytes    int64
	SHA256       string
}

func isImage(rel string) bool {
	return imageExtensions[strings.ToLower(path.Ext(rel))]
}

// imageAsset hashes the file in a streaming pass; images are exempt from
// the parse size limit.
func imageAsset(abs, rel string) (ImageAsset, error) {
	f, err := os.Open(abs)
	if err != nil {
		return ImageAsset{}, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return ImageAsset{}, err
	}
	return ImageAsset{
		FileName:     path.Base(rel),
		RelativePath: rel,
		SizeBytes:    n,
		SHA256:       hex.EncodeToString(h.Sum(nil)),
	}, nil
}
