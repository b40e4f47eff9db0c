package storage

import (
	"os"
	"strings"

	"github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/spidey/internal/urlnorm"
)

// exifMaxBytes skips metadata extraction for unusually large images.
const exifMaxBytes = 32 * 1024 * 1024

// exifExtensions are the image formats that carry an EXIF block.
var exifExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".heic": true,
}

func hasEXIFContainer(rawURL string) bool {
	return exifExtensions[strings.ToLower(urlnorm.Extension(rawURL))]
}

// readEXIF returns the formatted EXIF tags of the image at path, or nil if
// it has none.
func readEXIF(path string) map[string]string {
	info, err := os.Stat(path)
	if err != nil || info.Size() > exifMaxBytes {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path was written by the downloader
	if err != nil {
		return nil
	}
	return extractEXIF(data)
}

func extractEXIF(data []byte) map[string]string {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return nil
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil
	}

	tags := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry.TagName == "" || entry.Formatted == "" {
			continue
		}
		tags[entry.TagName] = entry.Formatted
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
