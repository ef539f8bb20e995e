package recordings

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vidvault/backend/pkg/response"
)

var errBadRange = errors.New("range not satisfiable")

// parseRange parses a "bytes=<start>-<end>" header against the file size.
// A missing <end> means rest-of-file; an <end> past the last byte is
// clamped. Unparsable specs, start >= size, and end < start all yield
// errBadRange.
func parseRange(header string, size int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, errBadRange
	}
	spec := strings.TrimPrefix(header, prefix)
	dash := strings.Index(spec, "-")
	if dash < 0 {
		return 0, 0, errBadRange
	}
	start, err = strconv.ParseInt(spec[:dash], 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errBadRange
	}
	end = size - 1
	if endStr := spec[dash+1:]; endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, errBadRange
		}
		if end > size-1 {
			end = size - 1
		}
	}
	if start >= size || end < start {
		return 0, 0, errBadRange
	}
	return start, end, nil
}

// ServeFileRange streams the file at path, honoring an optional Range
// header so video players can seek. Bytes are copied incrementally from
// the file; the whole recording is never buffered in memory. A client
// disconnect simply terminates the copy.
func ServeFileRange(c *gin.Context, path, contentType string) {
	f, err := os.Open(path)
	if err != nil {
		response.NotFound(c, "recording file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.NotFound(c, "recording file not found")
		return
	}
	size := info.Size()

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", contentType)

	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		c.Header("Content-Length", strconv.FormatInt(size, 10))
		c.Status(http.StatusOK)
		_, _ = io.Copy(c.Writer, f)
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		c.AbortWithStatus(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		response.Internal(c, "failed to read recording file")
		return
	}
	chunkSize := end - start + 1
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	c.Header("Content-Length", strconv.FormatInt(chunkSize, 10))
	c.Status(http.StatusPartialContent)
	_, _ = io.CopyN(c.Writer, f, chunkSize)
}
