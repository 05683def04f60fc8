package strategy

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Kind names one of the built-in strategies.
type Kind string

const (
	KindPassive    Kind = "passive"
	KindFixedWidth Kind = "fixed_width"
	KindBands      Kind = "bands"
	KindRatio      Kind = "ratio"
)

func Kinds() []Kind {
	return []Kind{KindPassive, KindFixedWidth, KindBands, KindRatio}
}

// ParseKind accepts the canonical names and a few common aliases.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "passive", "dual_order":
		return KindPassive, nil
	case "fixed_width", "fixed", "classic":
		return KindFixedWidth, nil
	case "bands", "bollinger", "elastic":
		return KindBands, nil
	case "ratio", "fluid":
		return KindRatio, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
}

// New builds a strategy of the given kind with default parameters.
func New(kind Kind, cfg Config, logger *zap.Logger) (Strategy, error) {
	switch kind {
	case KindPassive:
		return NewPassive(cfg, DefaultPassiveParams(), logger), nil
	case KindFixedWidth:
		return NewFixedWidth(cfg, DefaultFixedWidthParams(), logger), nil
	case KindBands:
		return NewBands(cfg, DefaultBandsParams(), logger), nil
	case KindRatio:
		return NewRatio(cfg, DefaultRatioParams(), logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
