package notifier

import "github.com/khaledhikmat/crackwatch/model"

// IService delivers an alert for an archived detection to humans.
type IService interface {
	Notify(evt model.DetectionEvent, image []byte) error
	Name() string
}
