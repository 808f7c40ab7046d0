package domain

import (
	"encoding/binary"
	"fmt"
)

// schedulePayloadLen is the exact size of an intake auxiliary payload: two
// big-endian uint64 values, unlockStart then unlockEnd.
const schedulePayloadLen = 16

// Schedule is the (unlockStart, unlockEnd) pair governing linear release,
// in seconds since epoch.
type Schedule struct {
	UnlockStart uint64
	UnlockEnd   uint64
}

// DecodeSchedule parses the auxiliary data payload carried by an intake
// transfer. Any payload that is not exactly two big-endian fixed-width
// unsigned integers fails with ErrInvalidSchedule.
func DecodeSchedule(payload []byte) (Schedule, error) {
	if len(payload) != schedulePayloadLen {
		return Schedule{}, fmt.Errorf("payload must be %d bytes, got %d: %w",
			schedulePayloadLen, len(payload), ErrInvalidSchedule)
	}
	return Schedule{
		UnlockStart: binary.BigEndian.Uint64(payload[:8]),
		UnlockEnd:   binary.BigEndian.Uint64(payload[8:]),
	}, nil
}

// EncodeSchedule is the inverse of DecodeSchedule; depositors use it to build
// the intake payload.
func EncodeSchedule(s Schedule) []byte {
	payload := make([]byte, schedulePayloadLen)
	binary.BigEndian.PutUint64(payload[:8], s.UnlockStart)
	binary.BigEndian.PutUint64(payload[8:], s.UnlockEnd)
	return payload
}

// Validate rejects schedules that start in the past or do not end strictly
// after they start.
func (s Schedule) Validate(now uint64) error {
	if s.UnlockStart < now {
		return fmt.Errorf("unlock start %d before current time %d: %w",
			s.UnlockStart, now, ErrInvalidSchedule)
	}
	if s.UnlockEnd <= s.UnlockStart {
		return fmt.Errorf("unlock end %d not after start %d: %w",
			s.UnlockEnd, s.UnlockStart, ErrInvalidSchedule)
	}
	return nil
}
