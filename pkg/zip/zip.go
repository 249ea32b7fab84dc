// Package zip bundles stored artifacts into a single flat archive for the
// request download endpoint.
package zip

import (
	"archive/zip"
	"bytes"
)

// Asset is one archive member.
type Asset struct {
	Filename string
	Data     []byte
}

// ArchiveAssets packs the assets into a zip archive held in memory. Artifact
// payloads are small enough (a handful of PNGs per request) that streaming is
// not worth the complexity.
func ArchiveAssets(assets []Asset) []byte {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		w, err := zw.Create(asset.Filename)
		if err != nil {
			continue
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil
		}
	}
	_ = zw.Close()
	return buf.Bytes()
}
