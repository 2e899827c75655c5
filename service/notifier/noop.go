package notifier

import "github.com/khaledhikmat/crackwatch/model"

type noopService struct {
}

func NewNoop() IService {
	return &noopService{}
}

func (svc *noopService) Notify(_ model.DetectionEvent, _ []byte) error {
	return nil
}

func (svc *noopService) Name() string {
	return "noop"
}
