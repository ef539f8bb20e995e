package models

import "time"

// Recording is one uploaded video and its stored-bytes reference.
// The id is assigned by PostgreSQL on insert and never changes; location is
// either an S3 object URL or an absolute path on local disk, depending on
// the configured blob store.
type Recording struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Location  string    `json:"location"`
	Filesize  int64     `json:"filesize"`
	CreatedAt time.Time `json:"created_at"`
}
