package models

import "time"

// Post is an entry of the media feed.
type Post struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Title string `gorm:"size:100;not null" json:"title"`
	Text  string `gorm:"type:text;not null" json:"text"`
	// ImageFilename names a file in the upload directory, nil when the post has no image.
	ImageFilename *string `gorm:"size:255" json:"image_filename"`
	// AuthorID is the principal that created the post; 0 for posts without a known author.
	AuthorID uint `gorm:"index;not null;default:0" json:"author_id"`
	// Version increases on every update.
	Version   uint      `gorm:"not null;default:1" json:"version"`
	CreatedAt time.Time `gorm:"index;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasImage reports whether the post references a stored image.
func (p Post) HasImage() bool {
	return p.ImageFilename != nil && *p.ImageFilename != ""
}

// Image returns the stored image reference or "".
func (p Post) Image() string {
	if p.ImageFilename == nil {
		return ""
	}
	return *p.ImageFilename
}
