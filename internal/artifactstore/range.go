package artifactstore

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/nullstream-oss/apkvault/internal/domain"
)

// rangeOutcome classifies a parsed Range header per the byte-range table:
// a syntactically invalid header degrades to a full-body response rather
// than failing the request.
type rangeOutcome int

const (
	rangeInvalid rangeOutcome = iota
	rangeSatisfiable
	rangeNotSatisfiable
)

// parseRangeHeader parses a "bytes=a-b" / "bytes=a-" / "bytes=-n" header
// against fileSize. start/end are only meaningful when outcome is
// rangeSatisfiable; end is inclusive.
func parseRangeHeader(header string, fileSize int64) (start, end int64, outcome rangeOutcome) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, rangeInvalid
	}

	parts := strings.Split(spec, "-")
	if len(parts) != 2 {
		return 0, 0, rangeInvalid
	}

	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	if startStr == "" {
		suffixLen, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffixLen < 0 {
			return 0, 0, rangeInvalid
		}
		if suffixLen == 0 {
			return 0, 0, rangeNotSatisfiable
		}
		start := fileSize - suffixLen
		if start < 0 {
			start = 0
		}
		return start, fileSize - 1, rangeSatisfiable
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, rangeInvalid
	}
	if start >= fileSize {
		return 0, 0, rangeNotSatisfiable
	}

	var endVal int64
	if endStr == "" {
		endVal = fileSize - 1
	} else {
		parsed, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || parsed < 0 {
			return 0, 0, rangeInvalid
		}
		endVal = parsed
		if endVal > fileSize-1 {
			endVal = fileSize - 1
		}
	}

	if start > endVal {
		return 0, 0, rangeNotSatisfiable
	}

	return start, endVal, rangeSatisfiable
}

// ServeRange inspects the file at absPath, parses rangeHeader (the
// caller's Range request header, possibly empty), and streams the
// selected byte window to w. It never buffers the file's full contents
// in memory: the underlying reader is seeked to the window start and
// copied in bounded chunks.
func (s *Store) ServeRange(w http.ResponseWriter, rangeHeader string, absPath, contentType string, filename *string) error {
	f, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewAppError(domain.CodeNotFound, "file not found")
		}
		return domain.WrapError(domain.CodeInternal, "failed to open file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.WrapError(domain.CodeInternal, "failed to stat file", err)
	}
	size := info.Size()

	status := http.StatusOK
	start, end := int64(0), size-1

	if rangeHeader != "" {
		rs, re, outcome := parseRangeHeader(rangeHeader, size)
		switch outcome {
		case rangeNotSatisfiable:
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return nil
		case rangeSatisfiable:
			start, end = rs, re
			status = http.StatusPartialContent
		case rangeInvalid:
			// Degrade to a full-body response.
		}
	}

	length := end - start + 1

	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(length, 10))
	h.Set("Accept-Ranges", "bytes")
	if status == http.StatusPartialContent {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	}
	if filename != nil {
		h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", *filename))
	}

	if start > 0 {
		if _, err := f.Seek(start, io.SeekStart); err != nil {
			return domain.WrapError(domain.CodeInternal, "failed to seek file", err)
		}
	}

	w.WriteHeader(status)
	_, err = io.CopyN(w, f, length)
	if err != nil && err != io.EOF {
		return domain.WrapError(domain.CodeInternal, "failed to stream file", err)
	}
	return nil
}
