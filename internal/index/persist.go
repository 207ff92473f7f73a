package index

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"docchat/internal/domain"
)

// Each user's index is persisted as two artifacts in its own directory:
// the raw embedding matrix and the id-mapping with chunk metadata. They
// are written to temp files first and renamed into place; a crash between
// the renames leaves a count disagreement that the load cross-check turns
// into a clean reinitialization.
const (
	vectorsFile = "vectors.gob"
	recordsFile = "records.json"
)

type vectorsArtifact struct {
	Dim     int
	Vectors [][]float64
}

type recordsArtifact struct {
	Records []domain.VectorRecord `json:"records"`
}

func (m *Manager) userDir(userID int64) string {
	return filepath.Join(m.root, fmt.Sprintf("user_%d", userID))
}

func (m *Manager) saveUser(userID int64, idx *userIndex) error {
	dir := m.userDir(userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	vpath := filepath.Join(dir, vectorsFile)
	rpath := filepath.Join(dir, recordsFile)

	vtmp := vpath + ".tmp"
	vf, err := os.Create(vtmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(vf).Encode(vectorsArtifact{Dim: idx.dim, Vectors: idx.vectors}); err != nil {
		vf.Close()
		os.Remove(vtmp)
		return err
	}
	if err := vf.Close(); err != nil {
		os.Remove(vtmp)
		return err
	}

	data, err := json.Marshal(recordsArtifact{Records: idx.records})
	if err != nil {
		os.Remove(vtmp)
		return err
	}
	rtmp := rpath + ".tmp"
	if err := os.WriteFile(rtmp, data, 0o644); err != nil {
		os.Remove(vtmp)
		return err
	}

	if err := os.Rename(vtmp, vpath); err != nil {
		os.Remove(vtmp)
		os.Remove(rtmp)
		return err
	}
	return os.Rename(rtmp, rpath)
}

// loadUser reads both artifacts back. A user that has never inserted gets
// a fresh empty index; anything unreadable or inconsistent is reported as
// ErrIndexCorrupt so the caller can reinitialize.
func (m *Manager) loadUser(userID int64) (*userIndex, error) {
	dir := m.userDir(userID)
	vpath := filepath.Join(dir, vectorsFile)
	rpath := filepath.Join(dir, recordsFile)

	vf, verr := os.Open(vpath)
	rdata, rerr := os.ReadFile(rpath)
	if errors.Is(verr, fs.ErrNotExist) && errors.Is(rerr, fs.ErrNotExist) {
		return newUserIndex(), nil
	}
	if verr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, verr)
	}
	defer vf.Close()
	if rerr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, rerr)
	}

	var va vectorsArtifact
	if err := gob.NewDecoder(vf).Decode(&va); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", domain.ErrIndexCorrupt, vectorsFile, err)
	}
	var ra recordsArtifact
	if err := json.Unmarshal(rdata, &ra); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", domain.ErrIndexCorrupt, recordsFile, err)
	}

	if len(va.Vectors) != len(ra.Records) {
		return nil, fmt.Errorf("%w: %d vectors but %d records", domain.ErrIndexCorrupt, len(va.Vectors), len(ra.Records))
	}
	for i := range ra.Records {
		if ra.Records[i].VectorID != i {
			return nil, fmt.Errorf("%w: record %d has vector id %d", domain.ErrIndexCorrupt, i, ra.Records[i].VectorID)
		}
		if len(va.Vectors[i]) != va.Dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", domain.ErrIndexCorrupt, i, len(va.Vectors[i]), va.Dim)
		}
		ra.Records[i].Embedding = va.Vectors[i]
	}
	return &userIndex{dim: va.Dim, vectors: va.Vectors, records: ra.Records}, nil
}
