package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/config"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/nativelog"
	"go.uber.org/zap"
)

func applyRuntimeSettings(cfg *config.AppConfig, logger *zap.Logger) error {
	_ = os.Setenv(nativelog.EnvLogDir, cfg.LogDir())

	if cfg.InsecureSecret() {
		// production refuses this in config.Validate
		logger.Warn("newsletter secret is empty or the shipped placeholder; set " + config.EnvSecret + " before going live")
	}
	if cfg.Newsletter.AdminToken == "" {
		logger.Info("admin token not set, operator routes are closed")
	}

	tz := strings.TrimSpace(cfg.Timezone)
	if tz == "" {
		return nil
	}
	loc, err := parseTimezoneLocation(tz)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	time.Local = loc
	_ = os.Setenv("TZ", tz)
	return nil
}

func parseTimezoneLocation(raw string) (*time.Location, error) {
	tz := strings.TrimSpace(raw)
	if tz == "" {
		return time.Local, nil
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc, nil
	}
	if len(tz) == 6 && (tz[0] == '+' || tz[0] == '-') && tz[3] == ':' {
		h, errH := strconv.Atoi(tz[1:3])
		m, errM := strconv.Atoi(tz[4:6])
		if errH == nil && errM == nil && h <= 23 && m <= 59 {
			offset := h*3600 + m*60
			if tz[0] == '-' {
				offset = -offset
			}
			return time.FixedZone(tz, offset), nil
		}
	}
	return nil, fmt.Errorf("expect IANA zone (e.g. Europe/London) or UTC offset (e.g. +08:00)")
}
