package packager

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/paths"
	"github.com/GriffinCanCode/AdminConsole/backend/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
)

// ArchiveContentType is the media type of an archived package
const ArchiveContentType = "application/zstd"

const (
	manifestEntry = "MANIFEST.json"
	filesPrefix   = "files/"
)

// archiveEpoch keeps archives byte-identical across exports
var archiveEpoch = time.Unix(0, 0).UTC()

type manifest struct {
	Descriptor types.Descriptor `json:"descriptor"`
	Digest     string           `json:"digest"`
}

// WriteArchive writes a package as a zstd-compressed tar stream
func WriteArchive(w io.Writer, pkg types.Package) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	if err := writeTar(tar.NewWriter(enc), pkg); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	return nil
}

func writeTar(tw *tar.Writer, pkg types.Package) error {
	meta, err := sonic.Marshal(manifest{Descriptor: pkg.Descriptor, Digest: pkg.Digest})
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := writeEntry(tw, manifestEntry, meta); err != nil {
		return err
	}
	for _, path := range pkg.Paths() {
		if err := writeEntry(tw, filesPrefix+path, pkg.Files[path]); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	return nil
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  archiveEpoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ReadArchive decodes a package written by WriteArchive. Entry paths are
// validated and the total decoded size is capped at maxBytes (0 = no cap).
// The digest is not verified here; Import does that.
func ReadArchive(r io.Reader, maxBytes int64) (types.Package, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return types.Package{}, types.WrapError(types.KindCorrupt, "", err, "invalid zstd stream")
	}
	defer dec.Close()

	var (
		pkg   = types.Package{Files: make(map[string][]byte)}
		seen  bool
		total int64
	)
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Package{}, types.WrapError(types.KindCorrupt, "", err, "invalid tar stream")
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		if hdr.Typeflag != tar.TypeReg {
			return types.Package{}, types.NewError(types.KindInvalid, "", "archive entry %s is not a regular file", hdr.Name)
		}

		total += hdr.Size
		if maxBytes > 0 && total > maxBytes {
			return types.Package{}, types.NewError(types.KindInvalid, "", "archive exceeds %d bytes", maxBytes)
		}

		var buf bytes.Buffer
		if _, err := io.CopyN(&buf, tr, hdr.Size); err != nil {
			return types.Package{}, types.WrapError(types.KindCorrupt, "", err, "truncated entry %s", hdr.Name)
		}

		switch {
		case hdr.Name == manifestEntry:
			var m manifest
			if err := sonic.Unmarshal(buf.Bytes(), &m); err != nil {
				return types.Package{}, types.WrapError(types.KindCorrupt, "", err, "invalid manifest")
			}
			pkg.Descriptor = m.Descriptor
			pkg.Digest = m.Digest
			seen = true
		case strings.HasPrefix(hdr.Name, filesPrefix):
			rel, err := paths.CleanRelative(strings.TrimPrefix(hdr.Name, filesPrefix))
			if err != nil {
				return types.Package{}, types.WrapError(types.KindInvalid, "", err, "unsafe archive entry")
			}
			pkg.Files[rel] = buf.Bytes()
		default:
			return types.Package{}, types.NewError(types.KindInvalid, "", "unexpected archive entry %s", hdr.Name)
		}
	}

	if !seen {
		return types.Package{}, types.NewError(types.KindCorrupt, "", "archive has no %s", manifestEntry)
	}
	return pkg, nil
}
