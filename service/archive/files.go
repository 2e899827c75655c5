package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/crackwatch/model"
	"github.com/khaledhikmat/crackwatch/service/config"
)

const maxCollisions = 1000

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// FrameFilename names an archived stream frame. Names sort by capture
// second first and by sequence within the same second.
func FrameFilename(ts time.Time, seq uint64, ext string) string {
	return fmt.Sprintf("frame_%s_%06d%s", ts.Format("20060102-150405"), seq, ext)
}

func uploadFilename() string {
	return fmt.Sprintf("crack_detection_%s.jpg", strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

type filesService struct {
	CfgSvc config.IService

	folder string
	seq    atomic.Uint64
	now    func() time.Time
}

// NewFiles archives into the configured output folder, creating it when
// missing.
func NewFiles(cfgsvc config.IService) (IService, error) {
	folder, err := filepath.Abs(cfgsvc.GetOutputFolder())
	if err != nil {
		return nil, xerrors.Errorf("resolving %s: %w", cfgsvc.GetOutputFolder(), err)
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, xerrors.Errorf("creating %s: %v: %w", folder, err, model.ErrStorage)
	}

	return &filesService{
		CfgSvc: cfgsvc,
		folder: folder,
		now:    time.Now,
	}, nil
}

func (svc *filesService) Save(data []byte) (model.ArchivedImage, error) {
	ts := svc.now()
	for i := 0; i < maxCollisions; i++ {
		name := FrameFilename(ts, svc.seq.Add(1), ".jpg")
		img, err := svc.write(name, data, ts)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return img, err
	}
	return model.ArchivedImage{}, xerrors.Errorf("no free name for %s: %w", ts.Format(time.RFC3339), model.ErrStorage)
}

func (svc *filesService) SaveUpload(data []byte) (model.ArchivedImage, error) {
	ts := svc.now()
	for i := 0; i < maxCollisions; i++ {
		img, err := svc.write(uploadFilename(), data, ts)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return img, err
	}
	return model.ArchivedImage{}, xerrors.Errorf("no free upload name: %w", model.ErrStorage)
}

func (svc *filesService) write(name string, data []byte, ts time.Time) (model.ArchivedImage, error) {
	path := filepath.Join(svc.folder, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return model.ArchivedImage{}, err
		}
		return model.ArchivedImage{}, xerrors.Errorf("creating %s: %v: %w", name, err, model.ErrStorage)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		return model.ArchivedImage{}, xerrors.Errorf("writing %s: %v: %w", name, err, model.ErrStorage)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return model.ArchivedImage{}, xerrors.Errorf("syncing %s: %v: %w", name, err, model.ErrStorage)
	}
	if err := file.Close(); err != nil {
		return model.ArchivedImage{}, xerrors.Errorf("closing %s: %v: %w", name, err, model.ErrStorage)
	}

	return model.ArchivedImage{
		Filename:  name,
		Size:      int64(len(data)),
		CreatedAt: ts,
	}, nil
}

func (svc *filesService) ListRecent() ([]string, error) {
	entries, err := os.ReadDir(svc.folder)
	if err != nil {
		return nil, xerrors.Errorf("reading %s: %v: %w", svc.folder, err, model.ErrStorage)
	}

	type item struct {
		name    string
		modTime time.Time
	}

	items := []item{}
	for _, e := range entries {
		if e.IsDir() || !allowedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info
			continue
		}
		items = append(items, item{name: e.Name(), modTime: info.ModTime()})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].modTime.Equal(items[j].modTime) {
			return items[i].name > items[j].name
		}
		return items[i].modTime.After(items[j].modTime)
	})

	names := make([]string, 0, len(items))
	for _, it := range items {
		names = append(names, it.name)
	}
	return names, nil
}

func (svc *filesService) Retrieve(name string) ([]byte, error) {
	path, err := svc.Path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, xerrors.Errorf("%s: %w", name, model.ErrNotFound)
		}
		return nil, xerrors.Errorf("reading %s: %v: %w", name, err, model.ErrStorage)
	}
	return data, nil
}

func (svc *filesService) Path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	path := filepath.Join(svc.folder, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", xerrors.Errorf("%s: %w", name, model.ErrNotFound)
		}
		return "", xerrors.Errorf("stat %s: %v: %w", name, err, model.ErrStorage)
	}
	if !info.Mode().IsRegular() {
		return "", xerrors.Errorf("%s: %w", name, model.ErrNotFound)
	}
	return path, nil
}

// validateName accepts only plain file names that live directly in the
// archive folder.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return xerrors.Errorf("%q: %w", name, model.ErrInvalidReference)
	case strings.ContainsAny(name, `/\`), strings.Contains(name, ".."), strings.ContainsRune(name, 0):
		return xerrors.Errorf("%q: %w", name, model.ErrInvalidReference)
	case filepath.IsAbs(name), filepath.Base(name) != name:
		return xerrors.Errorf("%q: %w", name, model.ErrInvalidReference)
	case !allowedExtensions[strings.ToLower(filepath.Ext(name))]:
		return xerrors.Errorf("%q: unsupported extension: %w", name, model.ErrInvalidReference)
	}
	return nil
}
