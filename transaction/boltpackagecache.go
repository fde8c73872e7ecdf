package transaction

import (
	"context"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/2lambda123/conda-conda/record"
)

var extractedBucket = []byte("extracted")

// BoltPackageCache is a PackageCache backed by a boltdb file recording
// which package identities have already been extracted into the local
// package cache directory, and where. A prefix's package cache can
// accumulate tens of thousands of entries across channels/subdirs;
// stat-ing every candidate directory on every solve is wasteful, so
// HasExtracted/ExtractedDir are backed by a small persistent key-value
// store instead, the same role boltdb plays for the teacher's
// source-manager on-disk cache (gps/source_cache_bolt_test.go)
// retargeted from "cloned VCS repo metadata" to "extracted package
// directory metadata".
type BoltPackageCache struct {
	db      *bolt.DB
	baseDir string
}

// OpenBoltPackageCache opens (creating if necessary) a bolt database at
// dbPath tracking extraction state for packages whose files live under
// baseDir.
func OpenBoltPackageCache(dbPath, baseDir string) (*BoltPackageCache, error) {
	db, err := bolt.Open(dbPath, 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening package cache db %s", dbPath)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(extractedBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating extracted bucket")
	}
	return &BoltPackageCache{db: db, baseDir: baseDir}, nil
}

func (c *BoltPackageCache) Close() error {
	return c.db.Close()
}

func (c *BoltPackageCache) HasExtracted(rec *record.PackageRecord) bool {
	key := []byte(rec.FilenameKey())
	var found bool
	c.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(extractedBucket).Get(key) != nil
		return nil
	})
	return found
}

func (c *BoltPackageCache) ExtractedDir(rec *record.PackageRecord) string {
	return filepath.Join(c.baseDir, rec.FilenameKey())
}

// MarkExtracted records that rec's files now live at ExtractedDir(rec).
// Called once FetchAndExtract succeeds.
func (c *BoltPackageCache) MarkExtracted(rec *record.PackageRecord) error {
	key := []byte(rec.FilenameKey())
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(extractedBucket).Put(key, []byte(c.ExtractedDir(rec)))
	})
}

// FetchAndExtract downloads rec's archive (resuming a partial download
// if one is on disk), verifies its checksum against the repodata
// digest, extracts it per its format (spec.md §6: .tar.bz2 or .conda),
// and records the extraction in the bolt bucket so a later HasExtracted
// call is a pure lookup.
func (c *BoltPackageCache) FetchAndExtract(ctx context.Context, rec *record.PackageRecord) error {
	if rec.URL == "" {
		return errors.Errorf("package record %s has no URL to fetch", rec.FilenameKey())
	}

	archivePath := filepath.Join(c.baseDir, rec.Fn)
	if err := downloadArchive(ctx, rec.URL, archivePath); err != nil {
		return errors.Wrapf(err, "downloading %s", rec.FilenameKey())
	}
	if err := verifyArchiveChecksum(archivePath, rec); err != nil {
		return err
	}

	destDir := c.ExtractedDir(rec)
	if err := extractArchive(archivePath, destDir, rec); err != nil {
		return errors.Wrapf(err, "extracting %s", rec.FilenameKey())
	}

	return c.MarkExtracted(rec)
}
