/*
service.go - Backup archives of the whole record store

PURPOSE:
  Snapshots the store through the controller, stores the snapshot in a Sink
  and restores a stored snapshot through the same validated import path the
  API uses.

NAMING:
  absence-20240301T120000.000Z.json[.xz]
  Keys sort chronologically; List returns the newest first.

RESTORE:
  Decode -> Controller.Import (validates fully, then replaces everything and
  drops the undo history). A malformed archive changes nothing.

SEE ALSO:
  - codec.go: Archive format
  - scheduler.go: Periodic backups
*/
package backup

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/absence-tracker/absence"
)

const (
	keyPrefix = "absence-"
	keyStamp  = "20060102T150405.000Z"
	extJSON   = ".json"
	extJSONXZ = ".json.xz"
)

// Service creates, lists and restores archives.
type Service struct {
	Controller *absence.Controller
	Sink       Sink
	Compress   bool
	Log        logrus.FieldLogger
	Now        func() time.Time
}

func NewService(ctrl *absence.Controller, sink Sink, compress bool, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		Controller: ctrl,
		Sink:       sink,
		Compress:   compress,
		Log:        log,
		Now:        time.Now,
	}
}

// Backup exports the store and stores it as a new archive.
func (s *Service) Backup(ctx context.Context) (Archive, error) {
	data, err := s.Controller.Export(ctx)
	if err != nil {
		return Archive{}, fmt.Errorf("failed to export: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, data, s.Compress); err != nil {
		return Archive{}, err
	}

	key := archiveKey(s.Now(), s.Compress)
	archive, err := s.Sink.Put(ctx, key, &buf)
	if err != nil {
		return Archive{}, err
	}
	if archive.CreatedAt.IsZero() {
		archive.CreatedAt = s.Now().UTC()
	}

	s.Log.WithFields(logrus.Fields{
		"key":       archive.Key,
		"size":      archive.Size,
		"driver":    s.Sink.Driver(),
		"employees": len(data.Employees),
		"entries":   len(data.Entries),
	}).Info("backup written")
	return archive, nil
}

// List returns the stored archives, newest first.
func (s *Service) List(ctx context.Context) ([]Archive, error) {
	archives, err := s.Sink.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(archives, func(i, j int) bool { return archives[i].Key > archives[j].Key })
	return archives, nil
}

// Restore replaces the store with the archive stored under key.
func (s *Service) Restore(ctx context.Context, key string) (absence.Result, error) {
	rc, err := s.Sink.Get(ctx, key)
	if err != nil {
		return absence.Result{}, err
	}
	defer rc.Close()

	data, err := Decode(rc)
	if err != nil {
		return absence.Result{}, err
	}

	res, err := s.Controller.Import(ctx, data)
	if err != nil {
		return absence.Result{}, err
	}
	s.Log.WithField("key", key).Info("backup restored")
	return res, nil
}

func archiveKey(t time.Time, compress bool) string {
	ext := extJSON
	if compress {
		ext = extJSONXZ
	}
	return keyPrefix + t.UTC().Format(keyStamp) + ext
}

func isArchiveName(name string) bool {
	return strings.HasPrefix(name, keyPrefix) &&
		(strings.HasSuffix(name, extJSON) || strings.HasSuffix(name, extJSONXZ))
}
