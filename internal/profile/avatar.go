package profile

import "strings"

var absolutePrefixes = []string{"http://", "https://", "blob:", "data:"}

// AvatarResolver turns a stored profile_image value into something an <img>
// can load.
type AvatarResolver struct {
	UploadBaseURL string
	Placeholder   string
}

// URL returns image unchanged when it is already absolute (a staged preview
// or a full link), the upload base joined with it when it is a bare file
// name, and the placeholder when it is empty.
func (r AvatarResolver) URL(image string) string {
	if image == "" {
		return r.Placeholder
	}
	for _, prefix := range absolutePrefixes {
		if strings.HasPrefix(image, prefix) {
			return image
		}
	}
	return r.UploadBaseURL + image
}
