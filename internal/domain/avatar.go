package domain

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Gender selects the generation prompt.
type Gender string

const (
	GenderMan   Gender = "man"
	GenderWoman Gender = "woman"
)

// TimestampLayout formats upload timestamps as YYYYMMDD-HHMMSS.
const TimestampLayout = "20060102-150405"

const (
	originalPrefix = "unity_webcam_"
	artifactPrefix = "superhero_avatar_"
	qrPrefix       = "qr_"
	imageExt       = ".png"
)

var lower = cases.Lower(language.Und)

// ParseGender case-folds raw client input. Anything other than man or woman,
// including values with surrounding whitespace, is a validation error.
func ParseGender(raw string) (Gender, error) {
	switch g := Gender(lower.String(raw)); g {
	case GenderMan, GenderWoman:
		return g, nil
	default:
		return "", fmt.Errorf("%w: invalid or missing gender", ErrValidation)
	}
}

// Timestamp renders t the way every filename of one upload embeds it.
func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// OriginalFilename is the stored name of the raw client upload.
func OriginalFilename(timestamp string) string {
	return originalPrefix + timestamp + imageExt
}

// ArtifactFilename is the stored name of the enhanced image.
func ArtifactFilename(timestamp string) string {
	return artifactPrefix + timestamp + imageExt
}

// QRFilename is the stored name of the QR code pointing at an artifact.
func QRFilename(artifact string) string {
	return qrPrefix + artifact
}

// Artifact is a materialized enhanced image.
type Artifact struct {
	Filename string
	Path     string
}

// UploadResult is what a successful enhancement hands back to the client.
type UploadResult struct {
	RequestID        string
	OriginalFilename string
	EnhancedFilename string
	QRCodeFilename   string
}
