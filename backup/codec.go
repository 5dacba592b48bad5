/*
codec.go - Backup archive encoding

FORMAT:
  An archive is the BackupData JSON document ({employees, entries, meta}),
  optionally wrapped in an xz stream. Decode sniffs the xz magic bytes, so
  plain .json exports from the API restore the same way as .json.xz archives.

SEE ALSO:
  - absence/types.go: BackupData
  - service.go: Naming and storing archives
*/
package backup

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ulikunitz/xz"
	"github.com/warp/absence-tracker/absence"
)

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

// Encode writes data as indented JSON, xz-compressed when compress is set.
func Encode(w io.Writer, data absence.BackupData, compress bool) error {
	if !compress {
		return writeJSON(w, data)
	}

	zw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to open xz stream: %w", err)
	}
	if err := writeJSON(zw, data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func writeJSON(w io.Writer, data absence.BackupData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	return nil
}

// Decode reads an archive produced by Encode, compressed or not. The result
// is not validated; absence.ValidateBackup runs on import.
func Decode(r io.Reader) (absence.BackupData, error) {
	br := bufio.NewReader(r)

	var src io.Reader = br
	if head, _ := br.Peek(len(xzMagic)); bytes.Equal(head, xzMagic) {
		zr, err := xz.NewReader(br)
		if err != nil {
			return absence.BackupData{}, decodeError("malformed xz stream", err)
		}
		src = zr
	}

	var data absence.BackupData
	if err := json.NewDecoder(src).Decode(&data); err != nil {
		return absence.BackupData{}, decodeError("malformed document", err)
	}
	return data, nil
}

// decodeError reports unreadable input as a ValidationError. A body cut off
// by http.MaxBytesReader keeps its *http.MaxBytesError.
func decodeError(what string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("backup exceeds %d bytes: %w", tooLarge.Limit, err)
	}
	return &absence.ValidationError{Field: "backup", Message: what + ": " + err.Error()}
}
