package bus

import (
	"fmt"
	"strings"

	"github.com/reviewsift/review-sift/internal/config"
	"github.com/reviewsift/review-sift/internal/pkg/errors"
)

// NewBus creates a Bus instance based on the configuration. When an event
// log path is configured the bus is wrapped so every published event is
// appended to the log file.
func NewBus(cfg config.BusConfig) (Bus, error) {
	var inner Bus

	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		inner = NewMemoryBus()

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		group := cfg.KafkaGroup
		if group == "" {
			group = "review-sift"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers: brokers,
			Topic:   cfg.KafkaTopic,
			Group:   group,
		})
		if err != nil {
			return nil, err
		}
		inner = kb

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.LogPath != "" {
		eventLogger, err := NewEventLogger(cfg.LogPath, true)
		if err != nil {
			inner.Close()
			return nil, errors.Wrap(errors.CodeConfiguration, "failed to open bus event log", err)
		}
		return NewLoggedBus(inner, eventLogger, nil), nil
	}

	return inner, nil
}
