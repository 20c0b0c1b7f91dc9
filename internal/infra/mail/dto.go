package mail

import (
	"time"

	"gopkg.in/gomail.v2"
)

// ArmFailureData fills the alert template.
type ArmFailureData struct {
	Flag   string
	UserID string
	Cause  string
	At     time.Time
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}
