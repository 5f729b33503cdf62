package domain

import (
	"fmt"
	"time"
)

type RoomID string

type RoomType string

const (
	RoomMatch  RoomType = "match"
	RoomClan   RoomType = "clan"
	RoomCustom RoomType = "custom"
)

// RoomTypeConfig fixes the lifetime of a room's shared-store keys per type.
type RoomTypeConfig struct {
	TTL         time.Duration
	Description string
}

var RoomTypes = map[RoomType]RoomTypeConfig{
	RoomMatch:  {TTL: 5 * time.Minute, Description: "standard multiplayer match room"},
	RoomClan:   {TTL: 30 * 24 * time.Hour, Description: "clan room for persistent chat and events"},
	RoomCustom: {TTL: time.Hour, Description: "custom/private room for special events"},
}

// ValidateRoomTypes is run at startup so a broken table fails fast instead of
// surfacing as zero-TTL keys in production.
func ValidateRoomTypes() error {
	for _, rt := range []RoomType{RoomMatch, RoomClan, RoomCustom} {
		cfg, ok := RoomTypes[rt]
		if !ok {
			return fmt.Errorf("missing config for room type %q", rt)
		}
		if cfg.TTL <= 0 {
			return fmt.Errorf("invalid TTL for room type %q", rt)
		}
	}
	return nil
}

// RoomTypeTTL returns the TTL for a known room type.
func RoomTypeTTL(rt RoomType) (time.Duration, bool) {
	cfg, ok := RoomTypes[rt]
	if !ok {
		return 0, false
	}
	return cfg.TTL, true
}
