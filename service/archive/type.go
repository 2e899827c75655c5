package archive

import "github.com/khaledhikmat/crackwatch/model"

// IService persists annotated frames that contained a positive detection.
// Archived files are written once and never deleted by this service.
type IService interface {
	Save(data []byte) (model.ArchivedImage, error)
	SaveUpload(data []byte) (model.ArchivedImage, error)
	ListRecent() ([]string, error)
	Retrieve(name string) ([]byte, error)
	Path(name string) (string, error)
}
